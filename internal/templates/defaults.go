package templates

import "github.com/voxtour/ticket-gateway/internal/model"

// RegisterDefaults installs the built-in English templates. Operators
// override per language and variant through Register.
func RegisterDefaults(r *Resolver) {
	r.Register(model.ChannelWhatsApp, "en", VariantDefault, Template{
		Body: "Hi {customer_name}, your tickets for booking {reference_number} ({pax} guests, {tour_date}) are attached. See you there!",
	})
	r.Register(model.ChannelWhatsApp, "en", VariantAudioGuide, Template{
		Body: "Hi {customer_name}, your tickets for booking {reference_number} ({pax} guests, {tour_date}) are attached. Your audio guide is ready: {audio_guide_link}",
	})

	r.Register(model.ChannelEmail, "en", VariantDefault, Template{
		Subject: "Your tickets for booking {reference_number}",
		Body:    "Hi {customer_name},<br><br>Your tickets for booking {reference_number} ({pax} guests, {tour_date}) are attached to this email.<br><br>Enjoy the tour!",
	})
	r.Register(model.ChannelEmail, "en", VariantAudioGuide, Template{
		Subject: "Your tickets and audio guide for booking {reference_number}",
		Body:    "Hi {customer_name},<br><br>Your tickets for booking {reference_number} ({pax} guests, {tour_date}) are attached to this email.<br><br>Your audio guide is ready: {audio_guide_link}<br><br>Enjoy the tour!",
	})
}

// DefaultNotificationText is the short SMS sent when email carries the
// ticket and the phone has no WhatsApp.
func DefaultNotificationText() StaticNotificationText {
	return StaticNotificationText{
		Texts: map[string]string{
			"en": "Your tour tickets have been sent to your email address. Please check your inbox.",
			"es": "Sus entradas han sido enviadas a su correo electronico. Por favor revise su bandeja de entrada.",
			"de": "Ihre Tickets wurden an Ihre E-Mail-Adresse gesendet. Bitte pruefen Sie Ihren Posteingang.",
		},
		Default: "Your tour tickets have been sent to your email address. Please check your inbox.",
	}
}
