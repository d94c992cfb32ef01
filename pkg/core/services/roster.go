package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

var validate = validator.New()

// MemberInput holds the editable fields of a roster member
type MemberInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

func (in MemberInput) normalize() (MemberInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return in, validationErrorf("invalid member: %s", strings.Join(fields, ", "))
		}
		return in, validationErrorf("invalid member: %v", err)
	}

	color, ok := model.NormalizeColor(in.Color)
	if !ok {
		return in, validationErrorf("invalid member: color must be #rrggbb")
	}
	in.Color = color
	return in, nil
}

// ListMembers returns the roster ordered by name
func ListMembers(ctx context.Context, store db.MemberStore, logger *zap.Logger) ([]db.Member, error) {
	members, err := store.ListMembers(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list members", Err: err}
	}
	logger.Debug("Listed members", zap.Int("count", len(members)))
	return members, nil
}

// AddMember validates input and inserts a new member
func AddMember(ctx context.Context, store db.MemberStore, logger *zap.Logger, input MemberInput) (*db.Member, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}

	member := &db.Member{
		Name:  input.Name,
		Email: input.Email,
		Phone: input.Phone,
		Color: input.Color,
	}
	if err := store.InsertMember(ctx, member); err != nil {
		return nil, &PersistenceError{Op: "insert member", Err: err}
	}

	logger.Info("Member added", zap.String("id", member.ID), zap.String("name", member.Name))
	return member, nil
}

// UpdateMember replaces the editable fields of an existing member
func UpdateMember(ctx context.Context, store db.MemberStore, logger *zap.Logger, id string, input MemberInput) (*db.Member, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}

	member, err := store.GetMember(ctx, id)
	if errors.Is(err, db.ErrMemberNotFound) {
		return nil, &NotFoundError{Message: fmt.Sprintf("member %s not found", id)}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "fetch member", Err: err}
	}

	member.Name = input.Name
	member.Email = input.Email
	member.Phone = input.Phone
	member.Color = input.Color
	if err := store.UpdateMember(ctx, member); err != nil {
		if errors.Is(err, db.ErrMemberNotFound) {
			return nil, &NotFoundError{Message: fmt.Sprintf("member %s not found", id)}
		}
		return nil, &PersistenceError{Op: "update member", Err: err}
	}

	logger.Info("Member updated", zap.String("id", member.ID), zap.String("name", member.Name))
	return member, nil
}

// RemoveMember deletes a member. Their shifts go with them; their history
// entries stay under the recorded name. Returns the number of shifts removed.
func RemoveMember(ctx context.Context, store db.MemberStore, logger *zap.Logger, id string) (int, error) {
	removed, err := store.DeleteMember(ctx, id)
	if errors.Is(err, db.ErrMemberNotFound) {
		return 0, &NotFoundError{Message: fmt.Sprintf("member %s not found", id)}
	}
	if err != nil {
		return 0, &PersistenceError{Op: "delete member", Err: err}
	}

	logger.Info("Member removed", zap.String("id", id), zap.Int("shifts_removed", removed))
	return removed, nil
}
