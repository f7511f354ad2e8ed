package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		ID string `json:"id"`
	}{
		ID: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn) {
	resp := struct {
		ID           string `json:"id"`
		UserID       string `json:"userId"`
		ConnectionID string `json:"connectionId"`
	}{
		ID:           "whoami",
		UserID:       string(conn.user),
		ConnectionID: conn.id,
	}
	ctl.sendJSON(conn, resp)
}
