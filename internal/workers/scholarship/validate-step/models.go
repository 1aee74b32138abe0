package validatestep

import apperrors "scholarship-workers/internal/common/errors"

type Input struct {
	Step string                 `json:"step"`
	Form map[string]interface{} `json:"form"`
}

type Output struct {
	Valid    bool                   `json:"valid"`
	Step     string                 `json:"step"`
	NextStep string                 `json:"nextStep"`
	Steps    []string               `json:"steps"`
	Errors   []apperrors.FieldError `json:"fieldErrors,omitempty"`
}
