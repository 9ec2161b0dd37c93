package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/models"
)

// ScoreSummary is the outcome of grading one submission. Score is always on
// the 0-20 scale regardless of the per-question point totals.
type ScoreSummary struct {
	Score        float64
	Passed       bool
	EarnedPoints float64
	TotalPoints  float64
	CorrectCount int
	Feedback     []dto.QuestionFeedback
	Summary      string
}

// ScoreExam grades a submission against the exam's questions, in exam order.
// It is a pure function: identical inputs always produce identical output,
// and it never fails; a question that cannot be evaluated simply earns zero.
// Answers are keyed by the question id rendered as a decimal string, matching
// the persisted attempt blob.
func ScoreExam(exam models.Exam, questions []models.ExamQuestion, answers map[string]string) ScoreSummary {
	summary := ScoreSummary{Feedback: make([]dto.QuestionFeedback, 0, len(questions))}
	recap := make([]string, 0, len(questions))

	for i, question := range questions {
		studentAnswer := answers[strconv.FormatUint(uint64(question.ID), 10)]
		isCorrect, correctDisplay, explanation := scoreAnswer(question, studentAnswer)

		summary.TotalPoints += question.Points
		earned := 0.0
		if isCorrect {
			earned = question.Points
			summary.EarnedPoints += question.Points
			summary.CorrectCount++
		}

		summary.Feedback = append(summary.Feedback, dto.QuestionFeedback{
			QuestionNumber: i + 1,
			QuestionText:   question.QuestionText,
			StudentAnswer:  studentAnswer,
			CorrectAnswer:  correctDisplay,
			QuestionType:   question.QuestionType,
			IsCorrect:      isCorrect,
			Explanation:    explanation,
			Points:         question.Points,
			EarnedPoints:   earned,
		})
		recap = append(recap, fmt.Sprintf("Pregunta %d: %s", i+1, explanation))
	}

	if summary.TotalPoints > 0 {
		summary.Score = summary.EarnedPoints / summary.TotalPoints * 20
	}
	summary.Passed = summary.Score >= exam.PassingScore
	summary.Summary = buildSummaryText(exam, summary, recap)

	return summary
}

// scoreAnswer dispatches exhaustively over the question type and returns the
// verdict, a display form of the correct answer and the explanation shown to
// the student.
func scoreAnswer(question models.ExamQuestion, studentAnswer string) (bool, string, string) {
	switch question.QuestionType {
	case models.QuestionTypeMultipleChoice:
		return scoreMultipleChoice(question, studentAnswer)

	case models.QuestionTypeTrueFalse:
		return scoreTrueFalse(question, studentAnswer)

	case models.QuestionTypeFillBlank:
		expected := question.CorrectAnswer
		if equalsFolded(studentAnswer, expected) {
			return true, expected, "Completaste correctamente el espacio en blanco."
		}
		return false, expected, fmt.Sprintf("La respuesta correcta era: %s", expected)

	case models.QuestionTypeOpenEnded:
		// Provisional full credit; the supplementary corrector may later attach
		// qualitative feedback, but never alters the score.
		return true, question.CorrectAnswer, "Pregunta abierta: tu respuesta ha sido registrada para revisión adicional."

	default:
		return false, question.CorrectAnswer, "Tipo de pregunta desconocido, no se pudo evaluar."
	}
}

func scoreMultipleChoice(question models.ExamQuestion, studentAnswer string) (bool, string, string) {
	correctTexts, err := question.CorrectOptionTexts()
	if err != nil || len(correctTexts) == 0 {
		return false, question.CorrectAnswer, "No se pudo evaluar la pregunta."
	}

	display := strings.Join(correctTexts, ", ")
	for _, text := range correctTexts {
		if studentAnswer == text {
			return true, display, "Seleccionaste la respuesta correcta."
		}
	}

	return false, display, fmt.Sprintf("La respuesta correcta era: %s", display)
}

func scoreTrueFalse(question models.ExamQuestion, studentAnswer string) (bool, string, string) {
	expected := strings.TrimSpace(strings.ToLower(question.CorrectAnswer)) == "true"
	display := "Falso"
	if expected {
		display = "Verdadero"
	}

	verdict, ok := parseTrueFalse(studentAnswer)
	if ok && verdict == expected {
		return true, display, "Correcto: identificaste correctamente la afirmación."
	}

	return false, display, fmt.Sprintf("La respuesta correcta era: %s", display)
}

// parseTrueFalse maps the accepted student vocabulary (Spanish and English,
// case-insensitive) onto a boolean verdict.
func parseTrueFalse(answer string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(answer)) {
	case "verdadero", "true":
		return true, true
	case "falso", "false":
		return false, true
	default:
		return false, false
	}
}

func equalsFolded(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func buildSummaryText(exam models.Exam, summary ScoreSummary, recap []string) string {
	verdict := "NO APROBADO"
	if summary.Passed {
		verdict = "APROBADO"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Resultado del Examen: %s\n", exam.Title))
	builder.WriteString(fmt.Sprintf("Puntuación Obtenida: %.1f/20\n", summary.Score))
	builder.WriteString(fmt.Sprintf("Puntuación para Aprobar: %.1f/20\n", exam.PassingScore))
	builder.WriteString(fmt.Sprintf("Estado: %s\n", verdict))
	builder.WriteString(fmt.Sprintf("Puntos obtenidos: %.1f de %.1f\n", summary.EarnedPoints, summary.TotalPoints))
	builder.WriteString("Resumen por pregunta:\n")
	for _, line := range recap {
		builder.WriteString("- ")
		builder.WriteString(line)
		builder.WriteString("\n")
	}

	return builder.String()
}
