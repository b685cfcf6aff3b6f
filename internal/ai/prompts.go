package ai

// Prompt fragments keyed by grade level. Unknown grades fall back to the
// grade-5 register.
var gradePrompts = map[string]string{
	"grade-1": "Explain this in very simple words for a 6-year-old child. Use basic vocabulary and short sentences.",
	"grade-2": "Explain this for a 7-year-old child. Use simple words and examples they can understand.",
	"grade-3": "Explain this for an 8-year-old child. Use clear, simple language with relatable examples.",
	"grade-4": "Explain this for a 9-year-old child. Use age-appropriate language and step-by-step explanations.",
	"grade-5": "Explain this for a 10-year-old child. Use clear explanations with examples.",
	"grade-6": "Explain this for an 11-year-old child. Use detailed but understandable explanations.",
	"grade-7": "Explain this for a 12-year-old child. Use comprehensive explanations with examples.",
	"grade-8": "Explain this for a 13-year-old child. Use detailed explanations and reasoning.",
	"form-1":  "Explain this for a 14-year-old high school student. Use detailed explanations and proper terminology.",
	"form-2":  "Explain this for a 15-year-old high school student. Use comprehensive explanations.",
	"form-3":  "Explain this for a 16-year-old high school student. Use advanced explanations.",
	"form-4":  "Explain this for a 17-year-old high school student preparing for exams. Use detailed, exam-focused explanations.",
}

// Prompt fragments keyed by subject. Unknown subjects fall back to "other".
var subjectPrompts = map[string]string{
	"math":           "For this math problem, provide a step-by-step solution. Show each step clearly and explain why each step is necessary.",
	"science":        "For this science question, explain the concept clearly with real-world examples that a child can relate to.",
	"english":        "For this English question, explain grammar rules or literary concepts in simple terms with examples.",
	"social-studies": "For this social studies question, explain historical or geographical concepts with context and examples.",
	"other":          "Explain this homework question clearly and provide helpful examples.",
}

const systemPromptSuffix = `

Your response should be in JSON format with the following structure:
{
  "explanation": "A clear, kid-friendly explanation of the answer",
  "steps": ["Step 1", "Step 2", "Step 3"],
  "additionalNotes": "Any helpful tips or additional information"
}

Make sure your explanation is encouraging and builds confidence. Use positive language and avoid making the child feel bad about not knowing the answer.`

func systemPrompt(gradeLevel, subject string) string {
	grade, ok := gradePrompts[gradeLevel]
	if !ok {
		grade = gradePrompts["grade-5"]
	}
	subj, ok := subjectPrompts[subject]
	if !ok {
		subj = subjectPrompts["other"]
	}
	return "You are a helpful homework assistant for children. " + grade + " " + subj + systemPromptSuffix
}
