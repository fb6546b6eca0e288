package realtime

// JoinRoom asks the server to add this client to a live session room.
func (m *Manager) JoinRoom(roomRef string) bool {
	return m.Emit(EventJoinRoom, RoomPayload{RoomRef: roomRef})
}

func (m *Manager) LeaveRoom(roomRef string) bool {
	return m.Emit(EventLeaveRoom, RoomPayload{RoomRef: roomRef})
}

func (m *Manager) SendRoomMessage(roomRef, message string) bool {
	return m.Emit(EventRoomMessage, RoomMessagePayload{RoomRef: roomRef, Message: message})
}

// UpdateStatus publishes this user's presence (e.g. "online", "away").
func (m *Manager) UpdateStatus(status string) bool {
	return m.Emit(EventUpdateStatus, StatusPayload{Status: status})
}

// SendAriaMessage forwards a prompt to the ARIA tutor; replies arrive as
// aria_response frames.
func (m *Manager) SendAriaMessage(message string, context map[string]any) bool {
	if context == nil {
		context = map[string]any{}
	}
	return m.Emit(EventAriaMessage, AriaMessagePayload{
		Message:   message,
		Context:   context,
		Timestamp: m.clock.Now().UTC(),
	})
}
