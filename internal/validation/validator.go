package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// text submissions must carry the question text; image submissions may
	// rely entirely on OCR.
	v.RegisterStructValidation(submitQuestionStructValidation, SubmitQuestionRequest{})

	return v
}

func submitQuestionStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(SubmitQuestionRequest)
	if req.SubmissionType == "text" && req.QuestionText == "" {
		sl.ReportError(req.QuestionText, "QuestionText", "questionText", "required_for_text", "")
	}
}
