package model

// ActionResult is what every dashboard action hands back to the view layer.
type ActionResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Ok wraps a successful result.
func Ok(data interface{}) ActionResult {
	return ActionResult{Success: true, Data: data}
}

// Fail wraps an error. A nil error still yields an unsuccessful result.
func Fail(err error) ActionResult {
	if err == nil {
		return ActionResult{Success: false, Error: "unknown error"}
	}
	return ActionResult{Success: false, Error: err.Error()}
}
