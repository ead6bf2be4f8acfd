package config

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 频谱帧长必须是2的幂
	if err := v.RegisterValidation("pow2", isPowerOfTwo); err != nil {
		panic(err)
	}
	return v
}

func isPowerOfTwo(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n > 0 && n&(n-1) == 0
}
