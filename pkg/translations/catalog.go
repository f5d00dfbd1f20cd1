// Package translations holds the default message catalog for notifications
// and foreground UI toasts.
package translations

import (
	"fmt"

	i18n "github.com/goliatone/go-i18n"
)

const (
	KeyDefaultTitle       = "relay.default.title"
	KeyDefaultBody        = "relay.default.body"
	KeyPermissionDenied   = "app.toast.permission_denied"
	KeyPermissionGranted  = "app.toast.permission_granted"
	KeyInvalidQR          = "app.toast.invalid_qr"
	KeyCameraFailed       = "app.toast.camera_failed"
	KeyRegistered         = "app.toast.registered"
	KeyRegistrationFailed = "app.toast.registration_failed"
	KeyForgotten          = "app.toast.forgotten"
	KeyForgetFailed       = "app.toast.forget_failed"
)

var english = map[string]string{
	KeyDefaultTitle:       "New Event",
	KeyDefaultBody:        "You have a new event",
	KeyPermissionDenied:   "Notification permission was not granted",
	KeyPermissionGranted:  "Notifications enabled",
	KeyInvalidQR:          "Invalid QR code format",
	KeyCameraFailed:       "Failed to start camera",
	KeyRegistered:         "Registered for push notifications",
	KeyRegistrationFailed: "Registration failed: %s",
	KeyForgotten:          "Registration forgotten",
	KeyForgetFailed:       "Could not clear events: %s",
}

// Translations returns the default translation catalog.
func Translations() i18n.Translations {
	return i18n.Translations{
		"en": newCatalog("en", english),
		"es": newCatalog("es", map[string]string{
			KeyDefaultTitle:       "Nuevo evento",
			KeyDefaultBody:        "Tienes un nuevo evento",
			KeyPermissionDenied:   "No se concedió el permiso de notificaciones",
			KeyPermissionGranted:  "Notificaciones activadas",
			KeyInvalidQR:          "Formato de código QR no válido",
			KeyCameraFailed:       "No se pudo iniciar la cámara",
			KeyRegistered:         "Registrado para notificaciones push",
			KeyRegistrationFailed: "Falló el registro: %s",
			KeyForgotten:          "Registro olvidado",
			KeyForgetFailed:       "No se pudieron borrar los eventos: %s",
		}),
	}
}

// NewTranslator builds a static translator over Translations.
func NewTranslator(defaultLocale string) (i18n.Translator, error) {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	store := i18n.NewStaticStore(Translations())
	return i18n.NewSimpleTranslator(store, i18n.WithTranslatorDefaultLocale(defaultLocale))
}

// Translate resolves key, falling back to the built-in English text and
// finally to the key itself.
func Translate(t i18n.Translator, locale, key string, args ...any) string {
	if t != nil {
		if out, err := t.Translate(locale, key, args...); err == nil && out != "" {
			return out
		}
	}
	if tpl, ok := english[key]; ok {
		if len(args) > 0 {
			return fmt.Sprintf(tpl, args...)
		}
		return tpl
	}
	return key
}

func newCatalog(locale string, entries map[string]string) *i18n.TranslationCatalog {
	catalog := &i18n.TranslationCatalog{
		Locale:   i18n.Locale{Code: locale},
		Messages: make(map[string]i18n.Message),
	}
	for key, template := range entries {
		msg := i18n.Message{}
		msg.SetContent(template)
		catalog.Messages[key] = msg
	}
	return catalog
}
