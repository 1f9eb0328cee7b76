// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package model

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned for provider records that cannot be
// turned into a valid Position or Device.
var ErrMalformedRecord = errors.New("malformed record")

// Raw record field names as served by the tracking provider
const (
	rawFieldID         = "id"
	rawFieldDeviceID   = "deviceId"
	rawFieldName       = "name"
	rawFieldStatus     = "status"
	rawFieldLastUpdate = "lastUpdate"
	rawFieldLatitude   = "latitude"
	rawFieldLongitude  = "longitude"
	rawFieldSpeed      = "speed"
	rawFieldDeviceTime = "deviceTime"
	rawFieldAttributes = "attributes"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// RawRecord is a provider JSON object as decoded from the wire; numbers
// are kept as json.Number.
type RawRecord map[string]interface{}

// DecodeRawRecords decodes a JSON array of provider objects.
func DecodeRawRecords(r io.Reader) ([]RawRecord, error) {
	records := []RawRecord{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// NormalizePosition converts a raw provider record into a Position.
// Records without a device ID or with missing or out of range coordinates
// are rejected with ErrMalformedRecord. A missing or unparseable device
// time is replaced by now and flagged with AttrTimeSynthetic.
func NormalizePosition(raw RawRecord, now time.Time) (Position, error) {
	deviceID, ok := identifier(raw[rawFieldDeviceID])
	if !ok {
		return Position{}, errors.Wrap(ErrMalformedRecord, "missing deviceId")
	}
	lat, ok := number(raw[rawFieldLatitude])
	if !ok {
		return Position{}, errors.Wrapf(ErrMalformedRecord,
			"device %s: missing latitude", deviceID)
	}
	lon, ok := number(raw[rawFieldLongitude])
	if !ok {
		return Position{}, errors.Wrapf(ErrMalformedRecord,
			"device %s: missing longitude", deviceID)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Position{}, errors.Wrapf(ErrMalformedRecord,
			"device %s: coordinates out of range (%f, %f)", deviceID, lat, lon)
	}
	speed, _ := number(raw[rawFieldSpeed])
	if speed < 0 {
		speed = 0
	}

	attrs := Attributes{}
	if m, ok := raw[rawFieldAttributes].(map[string]interface{}); ok {
		attrs = normalizeAttributes(m)
	}
	deviceTime, ok := timestamp(raw[rawFieldDeviceTime])
	if !ok || deviceTime.After(now.Add(MaxDeviceTimeSkew)) {
		deviceTime = now
		attrs[AttrTimeSynthetic] = true
	}

	return Position{
		DeviceID:   deviceID,
		Latitude:   roundCoordinate(lat),
		Longitude:  roundCoordinate(lon),
		Speed:      speed,
		DeviceTime: deviceTime.UTC(),
		Attributes: attrs,
	}, nil
}

// NormalizePositions converts a batch of raw records. Malformed records
// are left out and reported in errs; they never abort the batch.
func NormalizePositions(raws []RawRecord, now time.Time) (positions []Position, errs []error) {
	positions = make([]Position, 0, len(raws))
	for _, raw := range raws {
		p, err := NormalizePosition(raw, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		positions = append(positions, p)
	}
	return positions, errs
}

// NormalizeDevice converts a raw provider record into a Device.
func NormalizeDevice(raw RawRecord) (Device, error) {
	id, ok := identifier(raw[rawFieldID])
	if !ok {
		return Device{}, errors.Wrap(ErrMalformedRecord, "missing device id")
	}
	name, _ := raw[rawFieldName].(string)
	status, _ := raw[rawFieldStatus].(string)
	lastUpdate, _ := timestamp(raw[rawFieldLastUpdate])
	return Device{
		ID:         id,
		Name:       name,
		Status:     NormalizeDeviceStatus(status),
		LastUpdate: lastUpdate.UTC(),
	}, nil
}

// NormalizeDevices converts a batch of raw device records. Device IDs are
// unique in the result: later duplicates are reported as malformed.
func NormalizeDevices(raws []RawRecord) (devices []Device, errs []error) {
	devices = make([]Device, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		dev, err := NormalizeDevice(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[dev.ID]; dup {
			errs = append(errs, errors.Wrapf(ErrMalformedRecord,
				"duplicate device id %s", dev.ID))
			continue
		}
		seen[dev.ID] = struct{}{}
		devices = append(devices, dev)
	}
	return devices, errs
}

func identifier(v interface{}) (string, bool) {
	switch id := v.(type) {
	case json.Number:
		return id.String(), true
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

func number(v interface{}) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case json.Number:
		f, err = n.Float64()
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func plausibleTime(t time.Time) (time.Time, bool) {
	if t.Before(MinDeviceTime) || t.After(MaxDeviceTime) {
		return time.Time{}, false
	}
	return t, true
}

// timestamp accepts ISO-8601 strings and epoch milliseconds within
// [MinDeviceTime, MaxDeviceTime].
func timestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return plausibleTime(ts)
			}
		}
		return time.Time{}, false
	case json.Number, float64, int, int64:
		ms, ok := number(t)
		if !ok || ms <= 0 || ms > float64(MaxDeviceTime.UnixMilli()) {
			return time.Time{}, false
		}
		return plausibleTime(time.UnixMilli(int64(ms)))
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return plausibleTime(t)
	}
	return time.Time{}, false
}

func normalizeAttributes(in map[string]interface{}) Attributes {
	attrs := make(Attributes, len(in))
	for k, v := range in {
		attrs[k] = scalar(v)
	}
	return attrs
}

func scalar(v interface{}) interface{} {
	switch s := v.(type) {
	case nil, string, bool, float64, int64:
		return s
	case int:
		return int64(s)
	case json.Number:
		if i, err := s.Int64(); err == nil {
			return i
		}
		if f, err := s.Float64(); err == nil {
			return f
		}
		return s.String()
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return nil
		}
		return string(b)
	}
}
