package db

// Translations holds language slots keyed by language code, then field name.
type Translations map[string]map[string]string

// NewTranslations returns a map with an empty slot for every language and field.
func NewTranslations(languages, fields []string) Translations {
	t := Translations{}
	t.Fill(languages, fields)
	return t
}

// Fill adds empty slots for any missing language/field pair.
func (t Translations) Fill(languages, fields []string) {
	for _, lang := range languages {
		values, ok := t[lang]
		if !ok {
			values = make(map[string]string, len(fields))
			t[lang] = values
		}
		for _, field := range fields {
			if _, exists := values[field]; !exists {
				values[field] = ""
			}
		}
	}
}

func (t Translations) Get(lang, field string) string {
	if t == nil {
		return ""
	}
	return t[lang][field]
}

// Set writes one slot. The receiver must be non-nil.
func (t Translations) Set(lang, field, value string) {
	values, ok := t[lang]
	if !ok {
		values = map[string]string{}
		t[lang] = values
	}
	values[field] = value
}

func (t Translations) Clone() Translations {
	out := make(Translations, len(t))
	for lang, values := range t {
		copied := make(map[string]string, len(values))
		for field, value := range values {
			copied[field] = value
		}
		out[lang] = copied
	}
	return out
}

// SlotName is the flat slot key, e.g. name_fr.
func SlotName(field, lang string) string {
	return field + "_" + lang
}
