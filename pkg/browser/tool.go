package browser

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

// Tool exposes the Manager as an agent-callable tool supporting two actions:
// navigating to a URL and clicking an element on a page, both returning the
// resulting page's title and visible text.
type Tool struct {
	mgr *Manager
}

// NewBrowserTool wraps mgr as a tools.Tool.
func NewBrowserTool(mgr *Manager) *Tool {
	return &Tool{mgr: mgr}
}

func (t *Tool) Name() string { return "browser" }

func (t *Tool) Description() string {
	return "Drive a headless browser: navigate to a URL or click an element, and read back the page title and text."
}

func (t *Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "either \"navigate\" or \"click\"",
				"enum":        []string{"navigate", "click"},
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "page to open",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element to click (required for action=click)",
			},
		},
		"required": []string{"action", "url"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	action, _ := args["action"].(string)
	url, _ := args["url"].(string)
	if url == "" {
		return tools.ErrorResult("url is required")
	}

	var (
		page *PageResult
		err  error
	)
	switch action {
	case "navigate", "":
		page, err = t.mgr.Navigate(url)
	case "click":
		selector, _ := args["selector"].(string)
		if selector == "" {
			return tools.ErrorResult("selector is required for action=click")
		}
		page, err = t.mgr.Click(url, selector)
	default:
		return tools.ErrorResult(fmt.Sprintf("unknown action %q", action))
	}
	if err != nil {
		return tools.ErrorResult(err.Error()).WithError(err)
	}

	return tools.NewResult(fmt.Sprintf("# %s\n\n%s", page.Title, page.Text))
}
