package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/models"
	"github.com/aulavirtual/cursos-api/internal/repository"
)

// ErrQuestionNotFound indicates the question does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// ErrDuplicateQuestionOrder indicates the question order is already taken
// within the exam.
var ErrDuplicateQuestionOrder = errors.New("question order already in use")

// ErrInvalidAnswerPayload indicates the correct-answer payload does not match
// the question type's expected shape.
var ErrInvalidAnswerPayload = errors.New("invalid correct-answer payload")

// optionsSchema constrains the multiple-choice correct-answer payload: at
// least two options, each {text, is_correct}, and at least one flagged correct.
const optionsSchemaJSON = `{
  "type": "array",
  "minItems": 2,
  "items": {
    "type": "object",
    "required": ["text", "is_correct"],
    "properties": {
      "text": {"type": "string", "minLength": 1},
      "is_correct": {"type": "boolean"}
    }
  },
  "contains": {
    "type": "object",
    "required": ["is_correct"],
    "properties": {"is_correct": {"const": true}}
  }
}`

var optionsSchema = jsonschema.MustCompileString("options.schema.json", optionsSchemaJSON)

// ExamService covers exam and question authoring for teachers, plus the
// sanitized question view students receive while taking an exam.
type ExamService interface {
	Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error)
	Get(ctx context.Context, id uint) (dto.ExamResponse, error)
	List(ctx context.Context, courseID *uint) ([]dto.ExamResponse, error)
	AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	UpdateQuestion(ctx context.Context, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	DeleteQuestion(ctx context.Context, examID, questionID uint) error
	QuestionsForStudent(ctx context.Context, examID uint) ([]dto.StudentQuestionResponse, error)
}

type examService struct {
	exams     repository.ExamRepository
	questions repository.QuestionRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExamService constructs the exam authoring service.
func NewExamService(exams repository.ExamRepository, questions repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		questions: questions,
		validator: validate,
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		CourseID:         payload.CourseID,
		Title:            payload.Title,
		Description:      payload.Description,
		PassingScore:     payload.PassingScore,
		TimeLimitMinutes: payload.TimeLimitMinutes,
		MaxAttempts:      payload.MaxAttempts,
		ActivationDate:   payload.ActivationDate,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Str("title", exam.Title).Msg("exam created")

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = *payload.Title
	}
	if payload.Description != nil {
		exam.Description = *payload.Description
	}
	if payload.PassingScore != nil {
		exam.PassingScore = *payload.PassingScore
	}
	if payload.TimeLimitMinutes != nil {
		exam.TimeLimitMinutes = payload.TimeLimitMinutes
	}
	if payload.MaxAttempts != nil {
		exam.MaxAttempts = *payload.MaxAttempts
	}
	if payload.ActivationDate != nil {
		exam.ActivationDate = payload.ActivationDate
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Get(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) List(ctx context.Context, courseID *uint) ([]dto.ExamResponse, error) {
	exams, err := s.exams.List(ctx, repository.ExamFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}

	return dto.NewExamResponseSlice(exams), nil
}

func (s *examService) AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrExamNotFound
		}
		return dto.QuestionResponse{}, err
	}

	correctAnswer, err := encodeCorrectAnswer(payload.QuestionType, payload.CorrectAnswer, payload.Options)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.ExamQuestion{
		ExamID:        examID,
		QuestionType:  payload.QuestionType,
		QuestionText:  payload.QuestionText,
		Points:        payload.Points,
		QuestionOrder: payload.QuestionOrder,
		CorrectAnswer: correctAnswer,
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.QuestionResponse{}, ErrDuplicateQuestionOrder
		}
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("exam_id", examID).Uint("question_id", question.ID).Str("type", question.QuestionType).Msg("question added")

	return dto.NewQuestionResponse(question), nil
}

func (s *examService) UpdateQuestion(ctx context.Context, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if question.ExamID != examID {
		return dto.QuestionResponse{}, ErrQuestionNotFound
	}

	if payload.QuestionText != nil {
		question.QuestionText = *payload.QuestionText
	}
	if payload.Points != nil {
		question.Points = *payload.Points
	}
	if payload.QuestionOrder != nil {
		question.QuestionOrder = *payload.QuestionOrder
	}

	if payload.Options != nil || payload.CorrectAnswer != nil {
		answer := question.CorrectAnswer
		if payload.CorrectAnswer != nil {
			answer = *payload.CorrectAnswer
		}
		encoded, err := encodeCorrectAnswer(question.QuestionType, answer, payload.Options)
		if err != nil {
			return dto.QuestionResponse{}, err
		}
		question.CorrectAnswer = encoded
	}

	if err := s.questions.Update(ctx, &question); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.QuestionResponse{}, ErrDuplicateQuestionOrder
		}
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question), nil
}

func (s *examService) DeleteQuestion(ctx context.Context, examID, questionID uint) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if question.ExamID != examID {
		return ErrQuestionNotFound
	}

	return s.questions.Delete(ctx, questionID)
}

func (s *examService) QuestionsForStudent(ctx context.Context, examID uint) ([]dto.StudentQuestionResponse, error) {
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.StudentQuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, dto.NewStudentQuestionResponse(question))
	}

	return responses, nil
}

// encodeCorrectAnswer normalizes the authoring payload into the stored
// correct-answer column, validating its shape per question type.
func encodeCorrectAnswer(questionType, correctAnswer string, options []dto.AnswerOptionPayload) (string, error) {
	switch questionType {
	case models.QuestionTypeMultipleChoice:
		if len(options) == 0 {
			return "", fmt.Errorf("%w: multiple_choice requires options", ErrInvalidAnswerPayload)
		}

		stored := make([]models.AnswerOption, 0, len(options))
		for _, option := range options {
			stored = append(stored, models.AnswerOption{Text: option.Text, IsCorrect: option.IsCorrect})
		}

		encoded, err := json.Marshal(stored)
		if err != nil {
			return "", err
		}

		var decoded interface{}
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			return "", err
		}
		if err := optionsSchema.Validate(decoded); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidAnswerPayload, err)
		}

		return string(encoded), nil

	case models.QuestionTypeTrueFalse:
		if correctAnswer != "true" && correctAnswer != "false" {
			return "", fmt.Errorf("%w: true_false requires \"true\" or \"false\"", ErrInvalidAnswerPayload)
		}
		return correctAnswer, nil

	case models.QuestionTypeFillBlank, models.QuestionTypeOpenEnded:
		if correctAnswer == "" {
			return "", fmt.Errorf("%w: %s requires a correct answer", ErrInvalidAnswerPayload, questionType)
		}
		return correctAnswer, nil

	default:
		return "", fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswerPayload, questionType)
	}
}
