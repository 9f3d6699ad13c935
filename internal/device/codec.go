package device

import "encoding/json"

func encode(rec Record) ([]byte, error) { return json.Marshal(rec) }

func decode(data []byte) (Record, error) {
	var rec Record
	err := json.Unmarshal(data, &rec)
	return rec, err
}
