package service

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// stripTags turns submitted text into plain text: markup is removed and
// entities are decoded back.
var stripTags = bluemonday.StrictPolicy()

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(s)))
}

// MessageService is the contact-form inbox.
type MessageService struct {
	messages repository.MessageStore
	events   *events
}

// CreateMessageInput is a contact-form submission.
type CreateMessageInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"max=32"`
	Company         string `json:"company" validate:"max=200"`
	Subject         string `json:"subject" validate:"required,max=200"`
	Message         string `json:"message" validate:"required,max=5000"`
	ProductInterest string `json:"productInterest"`
}

// ReplyInput is an admin reply.
type ReplyInput struct {
	ReplyMessage string `json:"replyMessage" validate:"required,max=5000"`
}

// MessageQuery filters the inbox.
type MessageQuery struct {
	Status string
	ListParams
}

// Create stores a submission from any caller. An authenticated caller is
// recorded as the submitter.
func (s *MessageService) Create(ctx context.Context, actor model.Identity, in CreateMessageInput) (model.Message, error) {
	in.Name = plainText(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = plainText(in.Phone)
	in.Company = plainText(in.Company)
	in.Subject = plainText(in.Subject)
	in.Message = plainText(in.Message)
	in.ProductInterest = strings.TrimSpace(in.ProductInterest)

	var interestErr error
	if !model.Interest(in.ProductInterest).Valid() {
		interestErr = Validation(FieldError{Field: "productInterest", Message: "productInterest must be a product category or custom"})
	}
	if err := joinValidation(check(in), interestErr); err != nil {
		return model.Message{}, err
	}

	m := model.Message{
		Name:            in.Name,
		Email:           model.NormalizeEmail(in.Email),
		Phone:           in.Phone,
		Company:         in.Company,
		Subject:         in.Subject,
		Body:            in.Message,
		ProductInterest: model.Interest(in.ProductInterest),
		Status:          model.StatusNew,
		UserID:          actor.UserID,
	}
	if err := s.messages.Create(ctx, &m); err != nil {
		return model.Message{}, Internal(err)
	}
	s.events.publish(ctx, queue.TypeMessageCreated, queue.MessageCreated{
		MessageID:       m.ID,
		Name:            m.Name,
		Email:           m.Email,
		Subject:         m.Subject,
		ProductInterest: string(m.ProductInterest),
		UserID:          m.UserID,
	})
	return m, nil
}

func (s *MessageService) List(ctx context.Context, actor model.Identity, q MessageQuery) (List[model.Message], error) {
	if err := requireCap(actor, model.CapManageMessages); err != nil {
		return List[model.Message]{}, err
	}
	page, sort := q.repo()
	f := repository.MessageFilter{Sort: sort, Page: page}
	if st := strings.TrimSpace(q.Status); st != "" {
		if !model.MessageStatus(st).Valid() {
			return List[model.Message]{}, Validation(FieldError{Field: "status", Message: "status must be one of: new read replied closed"})
		}
		f.Status = model.MessageStatus(st)
	}
	if sort.Field != "" && sort.Field != repository.SortCreatedAt && sort.Field != repository.SortUpdatedAt && sort.Field != repository.SortStatus {
		return List[model.Message]{}, Validation(FieldError{Field: "sortBy", Message: "sortBy must be one of: createdAt updatedAt status"})
	}
	items, total, err := s.messages.List(ctx, f)
	if err != nil {
		return List[model.Message]{}, Internal(err)
	}
	return newList(items, total, page), nil
}

func (s *MessageService) Get(ctx context.Context, actor model.Identity, id string) (model.Message, error) {
	if err := requireCap(actor, model.CapManageMessages); err != nil {
		return model.Message{}, err
	}
	m, err := s.messages.GetByID(ctx, id)
	return m, storeErr(err, "Message")
}

// MarkRead moves a new message to read. Read and replied messages are
// returned unchanged.
func (s *MessageService) MarkRead(ctx context.Context, actor model.Identity, id string) (model.Message, error) {
	m, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Message{}, err
	}
	switch m.Status {
	case model.StatusRead, model.StatusReplied:
		return m, nil
	case model.StatusClosed:
		return model.Message{}, BadRequest("Message is closed")
	}
	m.Status = model.StatusRead
	return s.save(ctx, m)
}

// Reply records the admin reply. A new message is implicitly read first;
// replying again replaces the stored reply.
func (s *MessageService) Reply(ctx context.Context, actor model.Identity, id string, in ReplyInput) (model.Message, error) {
	if err := requireCap(actor, model.CapManageMessages); err != nil {
		return model.Message{}, err
	}
	in.ReplyMessage = plainText(in.ReplyMessage)
	if err := check(in); err != nil {
		return model.Message{}, err
	}
	m, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Message{}, err
	}
	if m.Status == model.StatusNew {
		m.Status = model.StatusRead
	}
	if m.Status != model.StatusReplied && !model.CanTransition(m.Status, model.StatusReplied) {
		return model.Message{}, BadRequest("Message is closed")
	}
	now := time.Now().UTC()
	m.Status = model.StatusReplied
	m.ReplyMessage = in.ReplyMessage
	m.RepliedAt = &now
	return s.save(ctx, m)
}

// Close ends triage. Nothing leaves closed.
func (s *MessageService) Close(ctx context.Context, actor model.Identity, id string) (model.Message, error) {
	m, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Message{}, err
	}
	if !model.CanTransition(m.Status, model.StatusClosed) {
		return model.Message{}, BadRequest("Message is already closed")
	}
	m.Status = model.StatusClosed
	return s.save(ctx, m)
}

func (s *MessageService) Delete(ctx context.Context, actor model.Identity, id string) error {
	if err := requireCap(actor, model.CapManageMessages); err != nil {
		return err
	}
	return storeErr(s.messages.Delete(ctx, id), "Message")
}

func (s *MessageService) save(ctx context.Context, m model.Message) (model.Message, error) {
	if err := s.messages.Update(ctx, &m); err != nil {
		return model.Message{}, storeErr(err, "Message")
	}
	return m, nil
}
