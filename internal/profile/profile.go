// ABOUTME: UserProfile record, merge-patch, and the completeness rules
// ABOUTME: Completeness gates onboarding; field validation uses go-playground/validator

package profile

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Capability is the practice track a user picked during onboarding.
type Capability string

const (
	CapabilityDecision   Capability = "decision"
	CapabilityExpression Capability = "expression"
	CapabilityCustom     Capability = "custom"
)

// Lang is a UI language code.
type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
	LangES Lang = "es"
)

// ErrInvalidProfile wraps field validation failures on write.
var ErrInvalidProfile = errors.New("invalid profile")

// UserProfile is the single profile record kept per device.
type UserProfile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email" validate:"omitempty,email"`
	Name             string     `json:"name"`
	Avatar           string     `json:"avatar,omitempty"`
	Capability       Capability `json:"capability" validate:"omitempty,oneof=decision expression custom"`
	CustomCapability string     `json:"customCapability,omitempty"`
	Job              string     `json:"job"`
	Interests        []string   `json:"interests"`
	Birthday         string     `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Lang             Lang       `json:"lang,omitempty" validate:"omitempty,oneof=zh en es"`
	CreatedAt        int64      `json:"createdAt"`
	UpdatedAt        int64      `json:"updatedAt"`
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Interests != nil {
		c.Interests = append([]string(nil), p.Interests...)
	}
	return &c
}

// Patch is a merge-patch: nil fields are left untouched.
type Patch struct {
	ID               *string     `json:"id,omitempty"`
	Email            *string     `json:"email,omitempty"`
	Name             *string     `json:"name,omitempty"`
	Avatar           *string     `json:"avatar,omitempty"`
	Capability       *Capability `json:"capability,omitempty"`
	CustomCapability *string     `json:"customCapability,omitempty"`
	Job              *string     `json:"job,omitempty"`
	Interests        *[]string   `json:"interests,omitempty"`
	Birthday         *string     `json:"birthday,omitempty"`
	Lang             *Lang       `json:"lang,omitempty"`
}

// Apply merges the patch onto p.
func (pt Patch) Apply(p *UserProfile) {
	if pt.ID != nil {
		p.ID = *pt.ID
	}
	if pt.Email != nil {
		p.Email = *pt.Email
	}
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Avatar != nil {
		p.Avatar = *pt.Avatar
	}
	if pt.Capability != nil {
		p.Capability = *pt.Capability
	}
	if pt.CustomCapability != nil {
		p.CustomCapability = *pt.CustomCapability
	}
	if pt.Job != nil {
		p.Job = *pt.Job
	}
	if pt.Interests != nil {
		p.Interests = append([]string(nil), (*pt.Interests)...)
	}
	if pt.Birthday != nil {
		p.Birthday = *pt.Birthday
	}
	if pt.Lang != nil {
		p.Lang = *pt.Lang
	}
}

// IsComplete reports whether onboarding can be considered done: name, avatar,
// capability, job, at least one interest and birthday are present, and a
// "custom" capability carries its label.
func IsComplete(p *UserProfile) bool {
	if p == nil {
		return false
	}
	hasBase := p.Name != "" &&
		p.Avatar != "" &&
		p.Capability != "" &&
		p.Job != "" &&
		len(p.Interests) > 0 &&
		p.Birthday != ""
	customOK := p.Capability != CapabilityCustom || p.CustomCapability != ""
	return hasBase && customOK
}

// completeness mirrors IsComplete as validator rules so callers get field names back.
type completeness struct {
	Name             string   `json:"name" validate:"required"`
	Avatar           string   `json:"avatar" validate:"required"`
	Capability       string   `json:"capability" validate:"required"`
	CustomCapability string   `json:"customCapability" validate:"required_if=Capability custom"`
	Job              string   `json:"job" validate:"required"`
	Interests        []string `json:"interests" validate:"min=1"`
	Birthday         string   `json:"birthday" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Missing lists the JSON names of the fields that keep p from being complete.
// It is empty exactly when IsComplete(p) is true.
func Missing(p *UserProfile) []string {
	if p == nil {
		p = &UserProfile{}
	}
	c := completeness{
		Name:             p.Name,
		Avatar:           p.Avatar,
		Capability:       string(p.Capability),
		CustomCapability: p.CustomCapability,
		Job:              p.Job,
		Interests:        p.Interests,
		Birthday:         p.Birthday,
	}

	missing := []string{}
	var verrs validator.ValidationErrors
	if err := validate.Struct(c); errors.As(err, &verrs) {
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
	}
	return missing
}

// check validates field formats on a profile about to be written.
func check(p *UserProfile) error {
	var verrs validator.ValidationErrors
	if err := validate.Struct(p); errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &FieldError{Fields: fields}
	} else if err != nil {
		return err
	}
	return nil
}

// FieldError lists the fields that failed validation.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "invalid profile fields: " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidProfile
}
