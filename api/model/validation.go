package model

import (
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 支持上传的信件文件扩展名
var letterFileExts = map[string]bool{
	".xml": true,
	".tei": true,
	".txt": true,
}

// RegisterValidators 向gin的验证引擎注册自定义验证规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	// letterfile 校验上传文件是否为支持的信件格式
	return v.RegisterValidation("letterfile", validateLetterFile)
}

// validateLetterFile 校验文件扩展名
func validateLetterFile(fl validator.FieldLevel) bool {
	file, ok := fl.Field().Interface().(multipart.FileHeader)
	if !ok {
		return false
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	return letterFileExts[ext]
}
