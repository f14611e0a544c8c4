package models

import "strings"

// Translator maps class names to localized display names.
type Translator struct {
	// Language tag of the display names, e.g. "fa".
	Language string
	table    map[string]string
	fallback func(name string) string
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithFallback makes Translate return text for names missing from the table instead of
// passing them through unchanged.
func WithFallback(text string) TranslatorOption {
	return func(t *Translator) {
		t.fallback = func(string) string { return text }
	}
}

// NewTranslator builds a translator over table. Keys are matched case-insensitively and
// underscores match spaces, so "traffic_light" and "Traffic Light" find the same entry.
func NewTranslator(language string, table map[string]string, opts ...TranslatorOption) *Translator {
	t := &Translator{
		Language: language,
		table:    make(map[string]string, len(table)),
		fallback: func(name string) string { return name },
	}
	for k, v := range table {
		t.table[normalizeName(k)] = v
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns the display name for name.
func (t *Translator) Translate(name string) string {
	if v, ok := t.table[normalizeName(name)]; ok {
		return v
	}
	return t.fallback(name)
}

// Persian returns a translator for the COCO class names into Persian.
func Persian(opts ...TranslatorOption) *Translator {
	return NewTranslator("fa", persianNames, opts...)
}

// PersianUnknown is the Persian word for an unrecognised label.
const PersianUnknown = "نامشخص"

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}

var persianNames = map[string]string{
	"person":         "انسان",
	"bicycle":        "دوچرخه",
	"car":            "ماشین",
	"motorcycle":     "موتورسیکلت",
	"airplane":       "هواپیما",
	"bus":            "اتوبوس",
	"train":          "قطار",
	"truck":          "کامیون",
	"boat":           "قایق",
	"traffic light":  "چراغ راهنمایی",
	"fire hydrant":   "شیر آتش‌نشانی",
	"stop sign":      "تابلو توقف",
	"parking meter":  "پارکومتر",
	"bench":          "نیمکت",
	"bird":           "پرنده",
	"cat":            "گربه",
	"dog":            "سگ",
	"horse":          "اسب",
	"sheep":          "گوسفند",
	"cow":            "گاو",
	"elephant":       "فیل",
	"bear":           "خرس",
	"zebra":          "گورخر",
	"giraffe":        "زرافه",
	"backpack":       "کوله‌پشتی",
	"umbrella":       "چتر",
	"handbag":        "کیف دستی",
	"tie":            "کراوات",
	"suitcase":       "چمدان",
	"frisbee":        "فریزبی",
	"skis":           "اسکی",
	"snowboard":      "اسنوبرد",
	"sports ball":    "توپ ورزشی",
	"kite":           "بادبادک",
	"baseball bat":   "چوب بیسبال",
	"baseball glove": "دستکش بیسبال",
	"skateboard":     "اسکیت‌برد",
	"surfboard":      "تخته موج‌سواری",
	"tennis racket":  "راکت تنیس",
	"bottle":         "بطری",
	"wine glass":     "لیوان شراب",
	"cup":            "فنجان",
	"fork":           "چنگال",
	"knife":          "چاقو",
	"spoon":          "قاشق",
	"bowl":           "کاسه",
	"banana":         "موز",
	"apple":          "سیب",
	"sandwich":       "ساندویچ",
	"orange":         "پرتقال",
	"broccoli":       "بروکلی",
	"carrot":         "هویج",
	"hot dog":        "هات‌داگ",
	"pizza":          "پیتزا",
	"donut":          "دونات",
	"cake":           "کیک",
	"chair":          "صندلی",
	"couch":          "کاناپه",
	"potted plant":   "گیاه گلدانی",
	"bed":            "تخت",
	"dining table":   "میز ناهارخوری",
	"toilet":         "توالت",
	"tv":             "تلویزیون",
	"laptop":         "لپ‌تاپ",
	"mouse":          "موس",
	"remote":         "کنترل",
	"keyboard":       "کیبورد",
	"cell phone":     "تلفن همراه",
	"microwave":      "مایکروویو",
	"oven":           "فر",
	"toaster":        "توستر",
	"sink":           "سینک",
	"refrigerator":   "یخچال",
	"book":           "کتاب",
	"clock":          "ساعت",
	"vase":           "گلدان",
	"scissors":       "قیچی",
	"teddy bear":     "عروسک خرسی",
	"hair drier":     "سشوار",
	"toothbrush":     "مسواک",
}
