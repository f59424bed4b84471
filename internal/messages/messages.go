// Package messages holds the localised strings the telephone skill speaks and
// displays. English and German are built in; plural forms are resolved with
// the CLDR rules of golang.org/x/text.
package messages

import (
	"errors"
	"fmt"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// ErrUnsupportedLanguage is returned by [New] when no built-in language is a
// reasonable match for the requested one.
var ErrUnsupportedLanguage = errors.New("messages: unsupported language")

// Message keys.
const (
	keyUnknownContact      = "telephone.unknown_contact"
	keyFoundContacts       = "telephone.found_contacts"
	keyConfirmCall         = "telephone.confirm_call"
	keyCalling             = "telephone.calling"
	keyNotCalling          = "telephone.not_calling"
	keyContactsUnavailable = "telephone.contacts_unavailable"
)

// Supported lists the built-in languages, default first.
var Supported = []language.Tag{language.English, language.German}

var (
	cat     = catalog.NewBuilder(catalog.Fallback(language.English))
	matcher = language.NewMatcher(Supported)
)

func init() {
	must := func(err error) {
		if err != nil {
			panic("messages: " + err.Error())
		}
	}

	en := language.English
	must(cat.SetString(en, keyUnknownContact, "I couldn't find that contact"))
	must(cat.Set(en, keyFoundContacts, plural.Selectf(1, "%d",
		plural.One, "I found %d contact",
		plural.Other, "I found %d contacts",
	)))
	must(cat.SetString(en, keyConfirmCall, "Should I call %s?"))
	must(cat.SetString(en, keyCalling, "Calling %s"))
	must(cat.SetString(en, keyNotCalling, "Okay, I won't call"))
	must(cat.SetString(en, keyContactsUnavailable, "Your contacts are unavailable right now"))

	de := language.German
	must(cat.SetString(de, keyUnknownContact, "Ich konnte diesen Kontakt nicht finden"))
	must(cat.Set(de, keyFoundContacts, plural.Selectf(1, "%d",
		plural.One, "Ich habe %d Kontakt gefunden",
		plural.Other, "Ich habe %d Kontakte gefunden",
	)))
	must(cat.SetString(de, keyConfirmCall, "Soll ich %s anrufen?"))
	must(cat.SetString(de, keyCalling, "Rufe %s an"))
	must(cat.SetString(de, keyNotCalling, "Okay, ich rufe nicht an"))
	must(cat.SetString(de, keyContactsUnavailable, "Deine Kontakte sind gerade nicht verfügbar"))
}

// Printer renders messages in one language. It is safe for concurrent use.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a Printer for the built-in language closest to lang (a BCP 47
// tag such as "en", "de-AT"). An empty lang selects English.
func New(lang string) (*Printer, error) {
	if lang == "" {
		return ForTag(language.English), nil
	}
	want, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("messages: parse language %q: %w", lang, err)
	}
	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return ForTag(Supported[idx]), nil
}

// ForTag returns a Printer for tag without matching. Unknown tags fall back
// to English strings.
func ForTag(tag language.Tag) *Printer {
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Tag returns the language of the printer.
func (p *Printer) Tag() language.Tag { return p.tag }

// UnknownContact is spoken when no candidate had a phone number.
func (p *Printer) UnknownContact() string { return p.p.Sprintf(keyUnknownContact) }

// FoundContacts announces how many contacts are displayed.
func (p *Printer) FoundContacts(n int) string { return p.p.Sprintf(keyFoundContacts, n) }

// ConfirmCall asks whether name should be called.
func (p *Printer) ConfirmCall(name string) string { return p.p.Sprintf(keyConfirmCall, name) }

// Calling is displayed once a call to number was placed.
func (p *Printer) Calling(number string) string { return p.p.Sprintf(keyCalling, number) }

// NotCalling answers a declined confirmation.
func (p *Printer) NotCalling() string { return p.p.Sprintf(keyNotCalling) }

// ContactsUnavailable is spoken when the directory could not be queried.
func (p *Printer) ContactsUnavailable() string { return p.p.Sprintf(keyContactsUnavailable) }
