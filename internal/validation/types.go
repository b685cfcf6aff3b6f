package validation

// SubmitQuestionRequest is the payload for POST /api/questions. Image
// submissions arrive as multipart form data with the photo in an "image"
// file field; the same struct binds both forms.
type SubmitQuestionRequest struct {
	QuestionText   string `json:"questionText" form:"questionText" validate:"omitempty,min=5,max=1000"`
	SubmissionType string `json:"submissionType" form:"submissionType" validate:"required,oneof=text image"`
	GradeLevel     string `json:"gradeLevel" form:"gradeLevel" validate:"required,oneof=grade-1 grade-2 grade-3 grade-4 grade-5 grade-6 grade-7 grade-8 form-1 form-2 form-3 form-4"`
	Subject        string `json:"subject" form:"subject" validate:"omitempty,oneof=math science english social-studies other"`
}

// InitiatePaymentRequest is the payload for POST /api/payments/initiate.
// Amount is whole shillings; the gateway accepts 1..250000 per transaction.
// PhoneNumber is normalized separately, so any plausible format binds here.
type InitiatePaymentRequest struct {
	QuestionID  string `json:"questionId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Amount      int    `json:"amount" validate:"required,gt=0,lte=250000"`
}

// SubscribeRequest is the payload for POST /api/subscriptions.
type SubscribeRequest struct {
	PlanID      string `json:"planId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}
