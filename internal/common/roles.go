package common

import (
	"errors"
	"sync"

	"auth_api/internal/platform/crypto"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleTech  = "tech"
)

var roles = []string{RoleUser, RoleAdmin, RoleTech}

// RoleNames lists every assignable role.
func RoleNames() []string {
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

func IsValidRole(role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateRole backs the `role` binding tag.
func ValidateRole(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

// ValidateBcryptPassword backs the `bcryptpw` tag: bcrypt counts bytes, not characters.
func ValidateBcryptPassword(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= crypto.MaxPasswordBytes
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		if err = v.RegisterValidation("role", ValidateRole); err != nil {
			return
		}
		err = v.RegisterValidation("bcryptpw", ValidateBcryptPassword)
	})
	return err
}
