// Package validation registers portal-specific binding tags on gin's validator.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
)

// Register installs the custom tags on gin's default validator engine:
// post_status, priority, reaction_type, subuser_role, subuser_status and permission_keys.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

// RegisterOn installs the custom tags on v.
func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tags := map[string]validator.Func{
		"post_status":     validatePostStatus,
		"priority":        validatePriority,
		"reaction_type":   validateReactionType,
		"subuser_role":    validateSubUserRole,
		"subuser_status":  validateSubUserStatus,
		"permission_keys": validatePermissionKeys,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func validatePostStatus(fl validator.FieldLevel) bool {
	_, ok := models.ParsePostStatus(fl.Field().String())
	return ok
}

func validatePriority(fl validator.FieldLevel) bool {
	_, ok := models.ParsePriority(fl.Field().String())
	return ok
}

func validateReactionType(fl validator.FieldLevel) bool {
	_, ok := models.ParseReactionType(fl.Field().String())
	return ok
}

func validateSubUserRole(fl validator.FieldLevel) bool {
	_, ok := models.ParseSubUserRole(fl.Field().String())
	return ok
}

func validateSubUserStatus(fl validator.FieldLevel) bool {
	_, ok := models.ParseSubUserStatus(fl.Field().String())
	return ok
}

// validatePermissionKeys accepts a map[string]bool whose keys are all known capabilities.
func validatePermissionKeys(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Map {
		return false
	}
	for _, k := range field.MapKeys() {
		if !permissions.ValidKey(k.String()) {
			return false
		}
	}
	return true
}

// Message flattens validator errors into a short client-facing string.
func Message(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request: " + err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "validation failed on fields: " + strings.Join(fields, ", ")
}
