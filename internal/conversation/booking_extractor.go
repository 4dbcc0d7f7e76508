package conversation

import (
	"regexp"
	"strings"

	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/internal/faq"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

type bookingField int

const (
	fieldName bookingField = iota + 1
	fieldSpecialty
	fieldServiceType
	fieldAssignee
	fieldDateTime
	fieldNotes
)

// bookingLabels maps normalized line labels to record fields.
var bookingLabels = map[string]bookingField{
	"name": fieldName, "full name": fieldName, "customer name": fieldName, "patient name": fieldName,
	"الاسم": fieldName, "اسم": fieldName, "اسم العميل": fieldName, "اسم المريض": fieldName,

	"specialty": fieldSpecialty, "speciality": fieldSpecialty, "department": fieldSpecialty, "clinic": fieldSpecialty,
	"التخصص": fieldSpecialty, "تخصص": fieldSpecialty, "القسم": fieldSpecialty, "العيادة": fieldSpecialty,

	"service": fieldServiceType, "service type": fieldServiceType, "treatment": fieldServiceType, "procedure": fieldServiceType,
	"الخدمة": fieldServiceType, "نوع الخدمة": fieldServiceType, "الإجراء": fieldServiceType,

	"doctor": fieldAssignee, "dr": fieldAssignee, "physician": fieldAssignee, "provider": fieldAssignee, "assignee": fieldAssignee,
	"الطبيب": fieldAssignee, "الطبيبة": fieldAssignee, "الدكتور": fieldAssignee, "الدكتورة": fieldAssignee,

	"date": fieldDateTime, "time": fieldDateTime, "datetime": fieldDateTime, "date and time": fieldDateTime,
	"appointment": fieldDateTime, "appointment time": fieldDateTime,
	"الموعد": fieldDateTime, "موعد": fieldDateTime, "التاريخ": fieldDateTime, "الوقت": fieldDateTime, "التاريخ والوقت": fieldDateTime,

	"notes": fieldNotes, "note": fieldNotes, "comments": fieldNotes, "remarks": fieldNotes,
	"ملاحظات": fieldNotes, "ملاحظة": fieldNotes,
}

// sentinelValues are written by the model for fields the customer did not provide.
var sentinelValues = map[string]struct{}{
	"unspecified": {}, "not specified": {}, "n a": {}, "none": {}, "unknown": {},
	"غير محدد": {}, "غير محددة": {}, "لا يوجد": {},
}

// listOrdinalRE matches a leading "1." or "2)" list marker in front of a label.
var listOrdinalRE = regexp.MustCompile(`^\s*(?:[-*•]\s*)?[0-9٠-٩]+\s*[.)\-]\s*`)

// Extraction is a parsed booking block.
type Extraction struct {
	Booking customers.BookingRecord
	Name    string
	Fields  int
}

// Update converts the extraction into a profile update intent.
func (e *Extraction) Update() customers.ProfileUpdate {
	var u customers.ProfileUpdate
	if e == nil {
		return u
	}
	if !customers.IsUnspecified(e.Name) {
		u.Name = customers.Ptr(e.Name)
	}
	if !e.Booking.IsEmpty() {
		booking := e.Booking
		u.AddBooking = &booking
	}
	return u
}

// BookingExtractor parses the labelled block that follows the booking tag in a completion.
type BookingExtractor struct {
	tag    string
	logger *logging.Logger
}

func NewBookingExtractor(tag string, logger *logging.Logger) *BookingExtractor {
	if strings.TrimSpace(tag) == "" {
		tag = DefaultBookingTag
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingExtractor{tag: tag, logger: logger}
}

// Extract returns nil when the tag is absent or when no line carries a recognized label.
func (e *BookingExtractor) Extract(text string) *Extraction {
	idx := strings.Index(text, e.tag)
	if idx < 0 {
		return nil
	}

	out := &Extraction{Booking: customers.NewBookingRecord(), Name: customers.Unspecified}
	for _, line := range strings.Split(text[idx+len(e.tag):], "\n") {
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		field, known := bookingLabels[faq.Normalize(listOrdinalRE.ReplaceAllString(label, ""))]
		if !known {
			continue
		}
		out.Fields++
		value = cleanValue(value)
		switch field {
		case fieldName:
			setOnce(&out.Name, value)
		case fieldSpecialty:
			setOnce(&out.Booking.Specialty, value)
		case fieldServiceType:
			setOnce(&out.Booking.ServiceType, value)
		case fieldAssignee:
			setOnce(&out.Booking.Assignee, value)
		case fieldDateTime:
			if value != customers.Unspecified && out.Booking.DateTime != customers.Unspecified {
				out.Booking.DateTime += " " + value
			} else {
				setOnce(&out.Booking.DateTime, value)
			}
		case fieldNotes:
			setOnce(&out.Booking.Notes, value)
		}
	}

	if out.Fields == 0 {
		e.logger.Warn("booking tag present but no fields recognized")
		bookingExtractionsTotal.WithLabelValues("unparsed").Inc()
		return nil
	}
	return out
}

// StripTag removes the tag marker while keeping the human readable summary that follows it.
func (e *BookingExtractor) StripTag(text string) string {
	return strings.TrimSpace(strings.Replace(text, e.tag, "", 1))
}

func splitLabel(line string) (string, string, bool) {
	idx := strings.IndexAny(line, ":：")
	if idx < 0 {
		return "", "", false
	}
	sep := ":"
	if strings.HasPrefix(line[idx:], "：") {
		sep = "："
	}
	return line[:idx], line[idx+len(sep):], true
}

func cleanValue(v string) string {
	v = strings.Trim(strings.TrimSpace(v), "*_ ")
	if v == "" || v == "-" {
		return customers.Unspecified
	}
	if _, ok := sentinelValues[faq.Normalize(v)]; ok {
		return customers.Unspecified
	}
	return v
}

func setOnce(dst *string, value string) {
	if *dst == customers.Unspecified || *dst == "" {
		*dst = value
	}
}
