package exchange

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"futures_bot/internal/models"
)

// payloadKind — форма поля data после снятия конверта.
type payloadKind int

const (
	payloadEmpty payloadKind = iota
	payloadList
	payloadObject
	payloadScalar
)

func (k payloadKind) String() string {
	switch k {
	case payloadList:
		return "list"
	case payloadObject:
		return "object"
	case payloadScalar:
		return "scalar"
	default:
		return "empty"
	}
}

// payload — канонический ответ биржи: тег формы и сырые байты data.
type payload struct {
	kind payloadKind
	data []byte
}

type envelope struct {
	Success *bool           `json:"success"`
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func decodeErr(format string, args ...any) error {
	return errors.Wrapf(models.ErrDecode, format, args...)
}

// normalize снимает конверт {success, code, message, data}.
// Голый массив — список без конверта. Всё прочее — ErrDecode.
func normalize(body []byte) (payload, error) {
	b := bytes.TrimSpace(body)
	if len(b) == 0 {
		return payload{}, decodeErr("empty body")
	}

	switch b[0] {
	case '[':
		return payload{kind: payloadList, data: b}, nil
	case '{':
	default:
		return payload{}, decodeErr("body starts with %q", b[0])
	}

	var env envelope
	if err := sonic.Unmarshal(b, &env); err != nil {
		return payload{}, decodeErr("envelope: %v", err)
	}
	if env.Success == nil && env.Code == nil && env.Data == nil {
		return payload{}, decodeErr("object without envelope")
	}
	if (env.Success != nil && !*env.Success) || (env.Code != nil && *env.Code != 0) {
		rej := &models.BrokerRejection{Message: env.Message}
		if env.Code != nil {
			rej.Code = *env.Code
		}
		if rej.Message == "" {
			rej.Message = env.Msg
		}
		return payload{}, rej
	}
	return classify(env.Data)
}

func classify(raw []byte) (payload, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || string(b) == "null" {
		return payload{kind: payloadEmpty}, nil
	}
	switch c := b[0]; {
	case c == '[':
		return payload{kind: payloadList, data: b}, nil
	case c == '{':
		return payload{kind: payloadObject, data: b}, nil
	case c == '"' || c == '-' || c == 't' || c == 'f' || (c >= '0' && c <= '9'):
		return payload{kind: payloadScalar, data: b}, nil
	default:
		return payload{}, decodeErr("data starts with %q", c)
	}
}

// decodeList читает список; одиночный объект считается списком из одного.
func decodeList[T any](p payload) ([]T, error) {
	switch p.kind {
	case payloadEmpty:
		return nil, nil
	case payloadList:
		var out []T
		if err := sonic.Unmarshal(p.data, &out); err != nil {
			return nil, decodeErr("list: %v", err)
		}
		return out, nil
	case payloadObject:
		var one T
		if err := sonic.Unmarshal(p.data, &one); err != nil {
			return nil, decodeErr("object: %v", err)
		}
		return []T{one}, nil
	default:
		return nil, decodeErr("%s where list expected", p.kind)
	}
}

func decodeObject[T any](p payload) (T, error) {
	var out T
	if p.kind != payloadObject {
		return out, decodeErr("%s where object expected", p.kind)
	}
	if err := sonic.Unmarshal(p.data, &out); err != nil {
		return out, decodeErr("object: %v", err)
	}
	return out, nil
}

// flexID принимает id и числом, и строкой.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	*f = flexID(s)
	return nil
}

// flexFloat принимает число и числовую строку; пустое — 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func firstPositive(vals ...flexFloat) float64 {
	for _, v := range vals {
		if v > 0 {
			return float64(v)
		}
	}
	return 0
}
