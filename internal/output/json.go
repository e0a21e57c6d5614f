package output

import "encoding/json"

// ErrorPayload is the JSON error shape commands emit in JSON mode. Code
// carries the exit code the text mode would have aborted with.
type ErrorPayload struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

// JSON writes v to stdout as indented JSON.
func JSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// JSONError writes a structured error payload to stdout.
func JSONError(err error, code int) error {
	return JSON(ErrorPayload{Message: err.Error(), Code: code})
}
