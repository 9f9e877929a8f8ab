package i18n

import (
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"LiveGuard/pkg/logger"
)

//go:embed locales/*.json
var builtin embed.FS

// I18nSupport 国际化支持结构体
type I18nSupport struct {
	bundle *i18n.Bundle
	lang   string

	mu         sync.Mutex
	localizers map[string]*i18n.Localizer
}

// NewI18nSupport loads the built-in English catalogue plus any *.json files
// found in extraDir (may be empty).
func NewI18nSupport(defaultLang, extraDir string) (*I18nSupport, error) {
	if defaultLang == "" {
		defaultLang = "en"
	}
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, err
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	buf, err := builtin.ReadFile("locales/en.json")
	if err != nil {
		return nil, err
	}
	if _, err := bundle.ParseMessageFileBytes(buf, "en.json"); err != nil {
		return nil, err
	}

	if extraDir != "" {
		files, _ := filepath.Glob(filepath.Join(extraDir, "*.json"))
		for _, f := range files {
			if _, err := bundle.LoadMessageFile(f); err != nil && !os.IsNotExist(err) {
				// 不返回错误，内置英文仍可用
				logger.Warn("failed to load locale file", zap.String("file", f), zap.Error(err))
			}
		}
	}

	return &I18nSupport{bundle: bundle, lang: defaultLang, localizers: make(map[string]*i18n.Localizer)}, nil
}

func (i *I18nSupport) localizer(lang string) *i18n.Localizer {
	i.mu.Lock()
	defer i.mu.Unlock()
	if l, ok := i.localizers[lang]; ok {
		return l
	}
	l := i18n.NewLocalizer(i.bundle, lang, i.lang)
	i.localizers[lang] = l
	return l
}

// T 获取翻译文本，找不到时返回键名
func (i *I18nSupport) T(languageTag, key string, templateData map[string]interface{}) string {
	translation, err := i.localizer(languageTag).Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		return key
	}
	return translation
}

// TWithDefaultLang 使用默认语言获取翻译文本
func (i *I18nSupport) TWithDefaultLang(key string, templateData map[string]interface{}) string {
	return i.T(i.lang, key, templateData)
}

var (
	defaultOnce sync.Once
	defaultI18n *I18nSupport
)

// Default returns the process-wide English catalogue.
func Default() *I18nSupport {
	defaultOnce.Do(func() {
		s, err := NewI18nSupport("en", "")
		if err != nil {
			// 内置文件损坏属于编译期问题
			panic(err)
		}
		defaultI18n = s
	})
	return defaultI18n
}

// M is shorthand for Default().TWithDefaultLang.
func M(key string, data ...map[string]interface{}) string {
	var td map[string]interface{}
	if len(data) > 0 {
		td = data[0]
	}
	return Default().TWithDefaultLang(key, td)
}
