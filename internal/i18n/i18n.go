// Package i18n holds the message catalogue and the validator translators.
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/weiwangfds/melodia/internal/logger"
)

// Supported languages.
const (
	LangEnUS = "en-US"
	LangZhCN = "zh-CN"
)

var (
	instance *I18n
	once     sync.Once

	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal server error",
			"invalid_params":        "Invalid parameters",
			"validation_failed":     "Validation failed",
			"unauthorized":          "Authentication required",
			"invalid_credentials":   "Invalid login or password",
			"token_invalid":         "Invalid or expired token",
			"forbidden":             "You do not have permission to perform this action",
			"account_inactive":      "This account is suspended or banned",
			"not_found":             "Resource not found",
			"conflict":              "Resource already exists or is in a conflicting state",
			"too_many_requests":     "Too many requests, please slow down",
			"service_unavailable":   "Service temporarily unavailable",
			"payload_too_large":     "Uploaded file is too large",
			"unsupported_media":     "Unsupported file type",
			"storage_failed":        "File storage operation failed",
			"database_error":        "Database operation failed",
			"unknown_error":         "Unknown error",
		},
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"validation_failed":     "参数校验失败",
			"unauthorized":          "需要登录",
			"invalid_credentials":   "用户名或密码错误",
			"token_invalid":         "令牌无效或已过期",
			"forbidden":             "没有权限执行此操作",
			"account_inactive":      "该账号已被停用或封禁",
			"not_found":             "资源未找到",
			"conflict":              "资源已存在或状态冲突",
			"too_many_requests":     "请求过于频繁",
			"service_unavailable":   "服务暂不可用",
			"payload_too_large":     "上传文件过大",
			"unsupported_media":     "不支持的文件类型",
			"storage_failed":        "文件存储失败",
			"database_error":        "数据库操作失败",
			"unknown_error":         "未知错误",
		},
	}
)

// I18n resolves catalogue keys and validator messages per language.
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance returns the process-wide instance.
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

func (i *I18n) initTranslators() {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	langMappings := map[string]string{
		LangEnUS: "en",
		LangZhCN: "zh",
	}
	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("translator not found for %s (locale %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}
}

// RegisterValidator installs the default validator translations for every language.
func (i *I18n) RegisterValidator(v *validator.Validate) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if trans, ok := i.translators[LangEnUS]; ok {
		if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
			return err
		}
	}
	if trans, ok := i.translators[LangZhCN]; ok {
		if err := zh_translations.RegisterDefaultTranslations(v, trans); err != nil {
			return err
		}
	}
	return nil
}

// Translator returns the validator translator for lang, falling back to the default.
func (i *I18n) Translator(lang string) ut.Translator {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if t, ok := i.translators[lang]; ok {
		return t
	}
	return i.translators[i.defaultLang]
}

// Translate resolves a catalogue key.
func (i *I18n) Translate(key, lang string) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if msg, ok := translations[lang][key]; ok {
		return msg
	}
	if msg, ok := translations[i.defaultLang][key]; ok {
		return msg
	}
	logger.Warnf("missing translation: %s (%s)", key, lang)
	return key
}

// SetDefaultLanguage changes the fallback language. Unsupported values are ignored.
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("unsupported default language %q ignored", lang)
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage returns the fallback language.
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage reports whether lang has a translator.
func (i *I18n) IsSupportedLanguage(lang string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.translators[lang]
	return ok
}

// FromAcceptLanguage picks the first supported language of an Accept-Language header.
func (i *I18n) FromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		lower := strings.ToLower(tag)
		switch {
		case strings.HasPrefix(lower, "zh"):
			return LangZhCN
		case strings.HasPrefix(lower, "en"):
			return LangEnUS
		}
	}
	return i.GetDefaultLanguage()
}
