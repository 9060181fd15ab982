package notify

import (
	"fmt"

	"github.com/felixgeelhaar/splitbot/internal/domain"
)

// defaultDescription fills in when a session was created without one.
const defaultDescription = "Sin descripción"

func describe(sess *domain.Session) string {
	if sess.Description == "" {
		return defaultDescription
	}
	return sess.Description
}

// closedNoticeOwner is what the owner reads after closing their session.
func closedNoticeOwner(sess *domain.Session) string {
	return fmt.Sprintf(
		"Cerraste la sesión \"%s\". Ya no se pueden agregar gastos.",
		describe(sess),
	)
}

// closedNoticeParticipant is what every other participant reads.
func closedNoticeParticipant(sess *domain.Session) string {
	return fmt.Sprintf(
		"La sesión \"%s\" fue cerrada por su creador. Ya no se pueden agregar gastos.",
		describe(sess),
	)
}
