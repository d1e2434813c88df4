package focus

import "encoding/json"

func encodeSessions(sessions []Session) ([]byte, error) {
	return json.Marshal(sessions)
}

func decodeSessions(data []byte) ([]Session, error) {
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
