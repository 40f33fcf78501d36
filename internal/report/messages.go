package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UploadFailedMarker is stored in place of a photo link when the photo could
// not be fetched or uploaded. The report is still saved.
const UploadFailedMarker = "Error al subir"

// UnexpectedErrorText is the generic reply for failures nobody anticipated.
const UnexpectedErrorText = "❌ Ocurrió un error inesperado. Por favor, intenta nuevamente con /reporte"

// Keyboard options offered at the journey-type step.
const (
	optionStart = "🟢 Inicio de Jornada"
	optionEnd   = "🔴 Fin de Jornada"
)

const (
	msgOdometerHint   = "⚠️ Escribe solo números, por ejemplo: 12345 o 12,345.6"
	msgCancelled      = "Reporte cancelado. Usa /reporte para iniciar uno nuevo."
	msgNothingActive  = "No tienes un reporte en curso. Usa /reporte para iniciar uno."
	msgPersistFailed  = "❌ Hubo un error al guardar el reporte.\nPor favor, intenta nuevamente con /reporte"
	msgSavedFooter    = "Toda la información ha sido guardada en Google Sheets."
	msgPhotosFooter   = "Las fotos quedaron en Google Drive."
	msgAnotherReport  = "Usa /reporte para hacer otro reporte. 🏍️"
	msgUploadDegraded = "⚠️ No se pudo subir la foto de %s; quedará registrada como \"%s\"."
)

var photoLabels = map[PhotoKind]string{
	PhotoPlate:     "placa",
	PhotoOdometer:  "kilometraje",
	PhotoCondition: "estado",
}

// prompt returns the question asked on entering step s.
func (c *Controller) prompt(s Step) Reply {
	switch s {
	case StepJourneyType:
		return Reply{
			Text:     "Selecciona el tipo de jornada:",
			Keyboard: []string{optionStart, optionEnd},
		}
	case StepDriverName:
		return Reply{Text: "Por favor, escribe tu nombre completo:", RemoveKeyboard: c.flow.JourneyType}
	case StepPlate:
		return Reply{Text: "Escribe la placa del vehículo:"}
	case StepOdometerInitial:
		if c.flow.ComputeDistance {
			return Reply{Text: "Escribe el kilometraje INICIAL:"}
		}
		return Reply{Text: "Escribe el kilometraje actual:"}
	case StepOdometerFinal:
		return Reply{Text: "Escribe el kilometraje FINAL:"}
	case StepPhotoPlate:
		return Reply{Text: "📸 Envía una foto de la PLACA del vehículo:"}
	case StepPhotoOdometer:
		return Reply{Text: "📸 Ahora envía una foto del KILOMETRAJE:"}
	case StepPhotoCondition:
		return Reply{Text: "📸 Por último, envía una foto del ESTADO GENERAL de la moto:"}
	case StepComments:
		return Reply{Text: fmt.Sprintf("Escribe tus comentarios (o \"%s\" si no hay):", NoCommentSentinel)}
	}
	return Reply{}
}

// welcomeText greets a user on /start.
func welcomeText(name string) string {
	if name == "" {
		name = "chofer"
	}
	return fmt.Sprintf("¡Hola %s! 👋\n\nSoy el bot de reportes de choferes. 🏍️\n\nUsa /reporte para registrar tu jornada.", name)
}

// helpText describes the commands and the steps of the configured flow.
func (c *Controller) helpText() string {
	var b strings.Builder
	b.WriteString("📖 Comandos disponibles:\n\n")
	b.WriteString("/start - Iniciar el bot\n")
	b.WriteString("/reporte - Crear un nuevo reporte\n")
	b.WriteString("/ayuda - Mostrar esta ayuda\n")
	b.WriteString("/cancelar - Cancelar reporte actual\n\n")
	b.WriteString("💡 Cómo usar:\n")
	n := 1
	step := func(s string) {
		fmt.Fprintf(&b, "%d. %s\n", n, s)
		n++
	}
	step("Usa /reporte")
	if c.flow.JourneyType {
		step("Selecciona inicio o fin de jornada")
	}
	step("Proporciona los datos solicitados")
	if c.flow.RequirePhotos {
		step("Sube las 3 fotos requeridas")
	}
	step("¡Listo! Todo se guarda automáticamente")
	return b.String()
}

func negativeDistanceText(initial, final decimal.Decimal) string {
	return fmt.Sprintf("⚠️ El kilometraje final (%s) no puede ser menor que el inicial (%s).\nEscribe nuevamente el kilometraje FINAL:",
		final.String(), initial.String())
}

func distanceText(dist decimal.Decimal) string {
	return fmt.Sprintf("📏 Distancia recorrida: %s km", dist.String())
}

// confirmationText summarizes a saved report.
func (c *Controller) confirmationText(d *Draft) string {
	var b strings.Builder
	b.WriteString("✅ ¡Reporte completado exitosamente! ✅\n\n📋 Resumen:\n")
	if c.flow.JourneyType {
		fmt.Fprintf(&b, "• Tipo: %s\n", d.JourneyType)
	}
	fmt.Fprintf(&b, "• Chofer: %s\n", deref(d.DriverName))
	fmt.Fprintf(&b, "• Placa: %s\n", deref(d.Plate))
	if c.flow.ComputeDistance {
		fmt.Fprintf(&b, "• Kilometraje inicial: %s km\n", decString(d.OdometerInitial))
		fmt.Fprintf(&b, "• Kilometraje final: %s km\n", decString(d.OdometerFinal))
		fmt.Fprintf(&b, "• Distancia recorrida: %s km\n", decString(d.Distance))
	} else {
		fmt.Fprintf(&b, "• Kilometraje: %s km\n", decString(d.OdometerInitial))
	}
	if comments := deref(d.Comments); comments != "" {
		fmt.Fprintf(&b, "• Comentarios: %s\n", comments)
	}
	b.WriteString("\n")
	b.WriteString(msgSavedFooter)
	if c.flow.RequirePhotos {
		b.WriteString(" ")
		b.WriteString(msgPhotosFooter)
	}
	b.WriteString("\n\n")
	b.WriteString(msgAnotherReport)
	return b.String()
}
