package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the format of the first spreadsheet column.
const TimestampLayout = "2006-01-02 15:04:05"

// Header returns the spreadsheet header row for the flow. Its order matches
// Row exactly.
func Header(f Flow) []string {
	h := []string{"Fecha y Hora"}
	if f.JourneyType {
		h = append(h, "Tipo de Jornada")
	}
	h = append(h, "Nombre del Chofer", "Placa")
	if f.ComputeDistance {
		h = append(h, "Kilometraje Inicial", "Kilometraje Final", "Distancia Recorrida")
	} else {
		h = append(h, "Kilometraje")
	}
	if f.RequirePhotos {
		h = append(h, "Link Foto Placa", "Link Foto Kilometraje", "Link Foto Estado")
	}
	return append(h, "Comentarios", "ID Reporte")
}

// Row assembles the spreadsheet row for a completed draft. The timestamp is
// rendered in loc.
func Row(f Flow, d *Draft, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	r := []string{d.Timestamp.In(loc).Format(TimestampLayout)}
	if f.JourneyType {
		r = append(r, string(d.JourneyType))
	}
	r = append(r, deref(d.DriverName), deref(d.Plate), decString(d.OdometerInitial))
	if f.ComputeDistance {
		r = append(r, decString(d.OdometerFinal), decString(d.Distance))
	}
	if f.RequirePhotos {
		for _, kind := range []PhotoKind{PhotoPlate, PhotoOdometer, PhotoCondition} {
			p, _ := d.Photo(kind)
			r = append(r, p.Link)
		}
	}
	return append(r, deref(d.Comments), d.ID)
}

// complete reports whether every field the flow requires has been set.
func complete(f Flow, d *Draft) bool {
	if f.JourneyType && d.JourneyType == "" {
		return false
	}
	if d.DriverName == nil || d.Plate == nil || d.OdometerInitial == nil || d.Comments == nil {
		return false
	}
	if f.ComputeDistance && (d.OdometerFinal == nil || d.Distance == nil) {
		return false
	}
	if f.RequirePhotos && len(d.Photos) != len(photoKinds) {
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
