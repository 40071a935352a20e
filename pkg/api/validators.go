package api

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding rules on gin's validator
// engine. Call once before the router starts serving.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("devicecommand", validDeviceCommand)
	}
}

// validDeviceCommand rejects command strings that could smuggle extra
// lines onto a device CLI.
func validDeviceCommand(fl validator.FieldLevel) bool {
	command := fl.Field().String()
	if strings.TrimSpace(command) == "" {
		return false
	}
	return !strings.ContainsAny(command, "\r\n\x00")
}
