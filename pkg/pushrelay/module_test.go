package pushrelay

import (
	"testing"

	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/storage"
)

func TestModuleConstruction(t *testing.T) {
	module, err := NewModule(ModuleOptions{
		Translator: moduleTranslator(t),
		Logger:     &logger.Nop{},
		Storage:    storage.NewMemoryProviders(),
	})
	if err != nil {
		t.Fatalf("module: %v", err)
	}
	defer module.Close()

	if module.Subscriptions() == nil || module.Relay() == nil || module.Events() == nil {
		t.Fatalf("expected core services")
	}
	if module.Hub() == nil || module.Receiver() == nil || module.Push() == nil {
		t.Fatalf("expected push endpoint and hub")
	}
	if module.Commands() == nil || len(module.Commands().Commanders()) != 6 {
		t.Fatalf("expected commands registry")
	}
}

func TestNilModuleAccessors(t *testing.T) {
	var m *Module
	if m.Relay() != nil || m.Commands() != nil || m.Container() != nil {
		t.Fatalf("nil module should return nil services")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func moduleTranslator(t *testing.T) i18n.Translator {
	t.Helper()
	translations := i18n.Translations{
		"en": &i18n.TranslationCatalog{Locale: i18n.Locale{Code: "en"}, Messages: map[string]i18n.Message{}},
	}
	store := i18n.NewStaticStore(translations)
	translator, err := i18n.NewSimpleTranslator(store, i18n.WithTranslatorDefaultLocale("en"))
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	return translator
}
