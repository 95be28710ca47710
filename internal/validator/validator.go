// internal/validator/validator.go
package validator

import (
	"card-rewards/internal/domain"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var nonSpace = regexp.MustCompile(`\S`)

func init() {
	Validate = validator.New()

	// Ключ категории из закрытого списка: "dining", "onlineShopping", ...
	_ = Validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseCategory(fl.Field().String())
		return err == nil
	})

	// Регистрируем валидацию: строка не пустая и не только пробелы
	_ = Validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonSpace.MatchString(fl.Field().String())
	})

	// Длина в байтах, а не в рунах: bcrypt режет пароль по 72 байтам
	_ = Validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
}
