package mysqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// MessageRepo mirrors the 'messages' table.
type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

const messageColumns = "id,name,email,phone,company,subject,body,product_interest,status,user_id,reply_message,replied_at,created_at,updated_at"

var messageSortColumns = map[string]string{
	repository.SortCreatedAt: "created_at",
	repository.SortUpdatedAt: "updated_at",
	repository.SortStatus:    "status",
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanMessage(r rowScanner) (model.Message, error) {
	var (
		m                model.Message
		interest, status string
		userID, reply    sql.NullString
		repliedAt        sql.NullTime
	)
	err := r.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Company, &m.Subject, &m.Body,
		&interest, &status, &userID, &reply, &repliedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Message{}, err
	}
	m.ProductInterest = model.Interest(interest)
	m.Status = model.MessageStatus(status)
	m.UserID = userID.String
	m.ReplyMessage = reply.String
	if repliedAt.Valid {
		t := repliedAt.Time.UTC()
		m.RepliedAt = &t
	}
	return m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		m.ID, m.Name, m.Email, m.Phone, m.Company, m.Subject, m.Body,
		string(m.ProductInterest), string(m.Status), nullString(m.UserID),
		nullString(m.ReplyMessage), m.RepliedAt, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (model.Message, error) {
	m, err := scanMessage(r.DB.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id=? LIMIT 1", id))
	return m, notFound(err)
}

func (r *MessageRepo) List(ctx context.Context, f repository.MessageFilter) ([]model.Message, int64, error) {
	cond := ""
	args := []any{}
	if f.Status != "" {
		cond = " WHERE status = ?"
		args = append(args, string(f.Status))
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, argsData := limitClause(f.Page, append([]any{}, args...))
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages"+cond+orderBy(f.Sort, messageSortColumns)+limit, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *MessageRepo) Update(ctx context.Context, m *model.Message) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE messages SET status=?, reply_message=?, replied_at=?, updated_at=? WHERE id=?`,
		string(m.Status), nullString(m.ReplyMessage), m.RepliedAt, m.UpdatedAt, m.ID)
	return affected(res, err)
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM messages WHERE id=?", id)
	return affected(res, err)
}
