package browser

import "context"

// BrowserDriver is the low-level automation surface every Action
// executes against. Implementations bind one browser session per
// driver instance (single-writer, §5 ordering).
type BrowserDriver interface {
	Navigate(ctx context.Context, url string) (Result, error)
	Click(ctx context.Context, selector string) (Result, error)
	InputText(ctx context.Context, selector, text string, clearFirst bool) (Result, error)
	SelectOption(ctx context.Context, selector, value string) (Result, error)
	GetElementText(ctx context.Context, selector string) (Result, error)
	TakeScreenshot(ctx context.Context, filename string) (Result, error)
}

// Execute runs a against driver using table to resolve logical target
// keys, returning the Result of the underlying call. Navigate and
// screenshot actions bypass the selector table since they carry their
// own URL/Filename.
func Execute(ctx context.Context, driver BrowserDriver, table SelectorTable, action Action) (Result, error) {
	switch action.Action {
	case ActionNavigate:
		return driver.Navigate(ctx, action.URL)
	case ActionScreenshot:
		return driver.TakeScreenshot(ctx, action.Filename)
	case ActionClick:
		selector, err := table.Lookup(action.Target)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, err
		}
		return driver.Click(ctx, selector)
	case ActionInput:
		selector, err := table.Lookup(action.Target)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, err
		}
		return driver.InputText(ctx, selector, action.Value, action.clearFirst())
	case ActionSelect:
		selector, err := table.Lookup(action.Target)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, err
		}
		return driver.SelectOption(ctx, selector, action.Value)
	case ActionGetText:
		selector, err := table.Lookup(action.Target)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, err
		}
		return driver.GetElementText(ctx, selector)
	default:
		return Result{Success: false, Error: "unsupported action kind"}, nil
	}
}
