package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored values use the protobuf wire format so records stay readable by
// any protobuf decoder and tolerate added fields.
const (
	fieldID      protowire.Number = 1
	fieldRoom    protowire.Number = 2
	fieldFrom    protowire.Number = 3
	fieldTo      protowire.Number = 4
	fieldContent protowire.Number = 5
	fieldAt      protowire.Number = 6
	fieldSeq     protowire.Number = 7
)

const (
	fieldUsername  protowire.Number = 1
	fieldFirstName protowire.Number = 2
	fieldLastName  protowire.Number = 3
	fieldCreatedAt protowire.Number = 4
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// consumeFields walks a record and hands every known scalar to visit.
// Unknown wire types are skipped.
func consumeFields(b []byte, visit func(num protowire.Number, s string, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			visit(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			visit(num, "", v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func encodeGroupMessage(m domain.GroupMessage) []byte {
	var b []byte
	b = appendString(b, fieldID, m.ID.String())
	b = appendString(b, fieldRoom, m.Room.String())
	b = appendString(b, fieldFrom, m.From)
	b = appendString(b, fieldContent, m.Content)
	b = appendVarint(b, fieldAt, uint64(m.At.UnixNano()))
	b = appendVarint(b, fieldSeq, m.Seq)
	return b
}

func decodeGroupMessage(b []byte) (domain.GroupMessage, error) {
	var m domain.GroupMessage
	var id string
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case fieldID:
			id = s
		case fieldRoom:
			m.Room = domain.RoomID(s)
		case fieldFrom:
			m.From = s
		case fieldContent:
			m.Content = s
		case fieldAt:
			m.At = time.Unix(0, int64(v)).UTC()
		case fieldSeq:
			m.Seq = v
		}
	})
	if err != nil {
		return domain.GroupMessage{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.GroupMessage{}, fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, err)
	}
	m.ID = parsedID
	return m, nil
}

func encodeDirectMessage(m domain.DirectMessage) []byte {
	var b []byte
	b = appendString(b, fieldID, m.ID.String())
	b = appendString(b, fieldFrom, m.From)
	b = appendString(b, fieldTo, m.To)
	b = appendString(b, fieldContent, m.Content)
	b = appendVarint(b, fieldAt, uint64(m.At.UnixNano()))
	b = appendVarint(b, fieldSeq, m.Seq)
	return b
}

func decodeDirectMessage(b []byte) (domain.DirectMessage, error) {
	var m domain.DirectMessage
	var id string
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case fieldID:
			id = s
		case fieldFrom:
			m.From = s
		case fieldTo:
			m.To = s
		case fieldContent:
			m.Content = s
		case fieldAt:
			m.At = time.Unix(0, int64(v)).UTC()
		case fieldSeq:
			m.Seq = v
		}
	})
	if err != nil {
		return domain.DirectMessage{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, err)
	}
	m.ID = parsedID
	return m, nil
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendString(b, fieldUsername, u.Username)
	b = appendString(b, fieldFirstName, u.FirstName)
	b = appendString(b, fieldLastName, u.LastName)
	b = appendVarint(b, fieldCreatedAt, uint64(u.CreatedAt.Unix()))
	return b
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case fieldUsername:
			u.Username = s
		case fieldFirstName:
			u.FirstName = s
		case fieldLastName:
			u.LastName = s
		case fieldCreatedAt:
			u.CreatedAt = time.Unix(int64(v), 0).UTC()
		}
	})
	return u, err
}
