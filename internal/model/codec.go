package model

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// PositionRecordSize is the byte length of the fixed, versionless Position
// record layout:
//
//	owner[32] referrer[32] total_deposited(u64) total_claimed(u64)
//	max_payout(u64) last_action_at(i64) created_at(i64)
//	direct_referrals(u32) _pad(u32) lifetime_ref_earnings(u64)
//
// All integers little-endian.
const PositionRecordSize = 32 + 32 + 8 + 8 + 8 + 8 + 8 + 4 + 4 + 8

// ErrBadRecordSize is returned when unmarshaling a record of the wrong length.
var ErrBadRecordSize = errors.New("model: bad position record size")

// MarshalBinary encodes the position into its fixed record layout.
func (p *Position) MarshalBinary() ([]byte, error) {
	owner, err := p.Owner.Bytes()
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}
	referrer, err := p.Referrer.Bytes()
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}

	buf := make([]byte, PositionRecordSize)
	copy(buf[0:32], owner[:])
	copy(buf[32:64], referrer[:])
	binary.LittleEndian.PutUint64(buf[64:72], p.TotalDeposited)
	binary.LittleEndian.PutUint64(buf[72:80], p.TotalClaimed)
	binary.LittleEndian.PutUint64(buf[80:88], p.MaxPayout)
	binary.LittleEndian.PutUint64(buf[88:96], uint64(p.LastActionAt))
	binary.LittleEndian.PutUint64(buf[96:104], uint64(p.CreatedAt))
	binary.LittleEndian.PutUint32(buf[104:108], p.DirectReferrals)
	// buf[108:112] stays zero (alignment padding in the original layout).
	binary.LittleEndian.PutUint64(buf[112:120], p.LifetimeRefEarnings)
	return buf, nil
}

// UnmarshalBinary decodes a fixed-layout position record.
func (p *Position) UnmarshalBinary(data []byte) error {
	if len(data) != PositionRecordSize {
		return fmt.Errorf("%w: got %d, want %d", ErrBadRecordSize, len(data), PositionRecordSize)
	}
	p.Owner = Identity(hex.EncodeToString(data[0:32]))
	p.Referrer = Identity(hex.EncodeToString(data[32:64]))
	p.TotalDeposited = binary.LittleEndian.Uint64(data[64:72])
	p.TotalClaimed = binary.LittleEndian.Uint64(data[72:80])
	p.MaxPayout = binary.LittleEndian.Uint64(data[80:88])
	p.LastActionAt = int64(binary.LittleEndian.Uint64(data[88:96]))
	p.CreatedAt = int64(binary.LittleEndian.Uint64(data[96:104]))
	p.DirectReferrals = binary.LittleEndian.Uint32(data[104:108])
	p.LifetimeRefEarnings = binary.LittleEndian.Uint64(data[112:120])
	return nil
}
