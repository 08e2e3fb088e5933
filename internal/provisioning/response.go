package provisioning

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// result is every field the provisioning API is known to answer with.
// Pointers distinguish "absent" from "false"/0.
type result struct {
	Accepted   *bool    `json:"accepted"`
	Success    *bool    `json:"success"`
	StatusCode *float64 `json:"statusCode"`
	NFCID      string   `json:"nfcId"`
	Message    string   `json:"message"`
	Error      string   `json:"error"`
}

// decodeResult parses a response body. Only JSON objects are accepted.
func decodeResult(data []byte) (result, error) {
	var r result

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return r, fmt.Errorf("%w: body is not a JSON object", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return r, nil
}

// ack turns a decoded result into an acknowledgement. Success must be stated
// explicitly; an object that says neither yes nor no is not a success.
func (r result) ack() (Ack, error) {
	switch {
	case r.Accepted != nil && !*r.Accepted,
		r.Success != nil && !*r.Success,
		r.StatusCode != nil && *r.StatusCode != 200:
		return Ack{}, &RejectedError{Message: r.reason()}
	case r.Accepted != nil && *r.Accepted,
		r.Success != nil && *r.Success,
		r.StatusCode != nil && *r.StatusCode == 200:
		return Ack{Message: r.Message}, nil
	default:
		return Ack{}, fmt.Errorf("%w: no acceptance indicator", ErrUnexpectedResponse)
	}
}

func (r result) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// parseAck decodes a provisioning acknowledgement from a 2xx body.
func parseAck(data []byte) (Ack, error) {
	r, err := decodeResult(data)
	if err != nil {
		return Ack{}, err
	}
	return r.ack()
}

// parseScan decodes a scan result from a 2xx body. An explicit rejection or a
// missing tag id is a failed scan.
func parseScan(data []byte) (string, error) {
	r, err := decodeResult(data)
	if err != nil {
		return "", err
	}
	if (r.Accepted != nil && !*r.Accepted) || (r.Success != nil && !*r.Success) {
		return "", &RejectedError{Message: r.reason()}
	}
	if r.NFCID == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTag, r.reason())
	}
	return r.NFCID, nil
}

// batchResult is one entry of an add_assignees response.
type batchResult struct {
	DeviceID string `json:"deviceId"`
	DoorName string `json:"doorName"`
	result
}

// parseBatch decodes an add_assignees response into per-door outcomes keyed
// by Submission.Key. Doors missing from the response are failures.
func parseBatch(data []byte, submissions []Submission) (map[string]error, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrUnexpectedResponse)
	}

	var body struct {
		Results *[]batchResult `json:"results"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if body.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrUnexpectedResponse)
	}

	seen := make(map[string]error, len(*body.Results))
	for _, r := range *body.Results {
		_, err := r.ack()
		seen[key(r.DeviceID, r.DoorName)] = err
	}

	outcomes := make(map[string]error, len(submissions))
	for _, s := range submissions {
		err, ok := seen[s.Key()]
		if !ok {
			err = fmt.Errorf("%w: no result for %s", ErrUnexpectedResponse, s.Key())
		}
		outcomes[s.Key()] = err
	}
	return outcomes, nil
}
