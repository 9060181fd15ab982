package bot

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// User-facing replies. The bot speaks Spanish; every engine error maps to a
// fixed message so storage details never leak into the chat.
const (
	replySessionCreated = "¡Sesión creada exitosamente! 🎉"
	replyShareIntro     = "Para compartir la sesión de cobro con más personas, comparte el siguiente mensaje:"

	replyAlreadyActiveSession = "Ya tienes una sesión activa. Cierra tu sesión actual antes de crear una nueva."
	replyNoActiveSession      = "No tienes una sesión activa. Crea una sesión para comenzar a registrar gastos."
	replyNoSessionToClose     = "No tienes una sesión activa para cerrar."
	replyNotOwner             = "Solo el creador de la sesión puede cerrarla."
	replySessionNotFound      = "No se encontró la sesión especificada. Verifica que el ID sea correcto."
	replySessionClosedJoin    = "No puedes unirte a una sesión cerrada."
	replyMissingJoinID        = "No se pudo identificar el ID de la sesión. Por favor envía un ID válido."

	replyAssignComingSoon = "Función de asignación de items próximamente disponible."

	replyUnknownNoSession   = "No entendí tu mensaje. " + replyNoActiveSession
	replyUnknownWithSession = "No entendí tu mensaje. ¿Podrías reformularlo o pedir ayuda con 'ayuda'?"

	replyGenericError    = "Hubo un error al procesar tu mensaje. Por favor intenta de nuevo."
	replyExtractionError = "No pude leer la imagen. Asegúrate de que la boleta se vea completa y vuelve a intentarlo."
	replyTransferNoted   = "Recibí tu comprobante de transferencia. Por ahora no registro transferencias, ¡pero gracias!"
)

func describeSession(sess *domain.Session) string {
	if sess.Description == "" {
		return "Sin descripción"
	}
	return sess.Description
}

// shareLink is the message a user forwards so friends can join.
func shareLink(sess *domain.Session) string {
	return fmt.Sprintf(
		"¡Hola! Únete a mi sesión de pago compartido enviando este mensaje al bot:\n\n"+
			"Quiero unirme a la sesión %s",
		sess.ShareToken(),
	)
}

func joinedReply(sess *domain.Session) string {
	return fmt.Sprintf(
		"¡Te has unido exitosamente a la sesión! 🎉\n\n"+
			"Descripción: %s\n\n"+
			"Ahora puedes enviar boletas y participar en esta sesión compartida con tus amigos.",
		describeSession(sess),
	)
}

func alreadyJoinedReply(sess *domain.Session) string {
	return fmt.Sprintf(
		"Ya estás participando en esta sesión. ✅\n\n"+
			"Descripción: %s\n\n"+
			"Puedes enviar boletas y continuar participando normalmente.",
		describeSession(sess),
	)
}

// invoiceCreatedReply summarizes a freshly registered receipt.
func invoiceCreatedReply(inv *domain.Invoice, items []domain.InvoiceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Boleta registrada 🧾\n\nComercio: %s\nTotal: $%.0f\n", inv.Merchant, inv.TotalAmount)
	if inv.TipRatio > 0 {
		fmt.Fprintf(&b, "Propina: %.0f%%\n", inv.TipRatio*100)
	}
	if len(items) > 0 {
		b.WriteString("\nÍtems:\n")
		for _, item := range items {
			fmt.Fprintf(&b, "- %dx %s ($%.0f)\n", item.Count, item.Description, item.Amount)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
