package service

import "github.com/go-playground/validator/v10"

var validate = validator.New()

func validMail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
