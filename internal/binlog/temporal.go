package binlog

import (
	"fmt"

	"github.com/ipconfiger/ru-cdc/internal/wire"
)

// DecodeDate decodes a 3-byte little-endian DATE value: year in bits
// 23..9, month in bits 8..5, day in bits 4..0. A zero value means NULL
// date ("0000-00-00" is never produced; the caller treats the column
// as SQL NULL instead).
func DecodeDate(buf []byte) (string, int, bool, error) {
	if len(buf) < 3 {
		return "", 0, false, fmt.Errorf("binlog: truncated date")
	}
	v := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	if v == 0 {
		return "", 3, true, nil
	}
	year := v >> 9
	month := (v >> 5) & 0xF
	day := v & 0x1F
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), 3, false, nil
}

// DecodeTime2 decodes a TIME2 value: 3 bytes of packed sign/hour/minute/
// second plus fsp-dependent fractional-second bytes.
func DecodeTime2(buf []byte, fsp int) (string, int, error) {
	if len(buf) < 3 {
		return "", 0, fmt.Errorf("binlog: truncated time2")
	}
	raw, _, err := wire.ReadBEUint(buf, 3)
	if err != nil {
		return "", 0, err
	}

	negative := raw&0x800000 == 0
	if negative {
		raw = (^raw + 1) & 0xFFFFFF
	}

	hour := (raw >> 12) & 0x3FF
	minute := (raw >> 6) & 0x3F
	second := raw & 0x3F

	fracMicros, fracLen, err := decodeFrac(buf[3:], fsp)
	if err != nil {
		return "", 0, err
	}

	sign := ""
	if negative {
		sign = "-"
	}
	s := fmt.Sprintf("%s%02d:%02d:%02d", sign, hour, minute, second)
	if fsp > 0 {
		s += fmt.Sprintf(".%0*d", fsp, fracMicros/pow10(6-fsp))
	}
	return s, 3 + fracLen, nil
}

// DecodeDateTime2 decodes a DATETIME2 value: a 5-byte big-endian field
// biased by 0x8000000000, plus fsp-dependent fractional-second bytes.
func DecodeDateTime2(buf []byte, fsp int) (string, int, error) {
	if len(buf) < 5 {
		return "", 0, fmt.Errorf("binlog: truncated datetime2")
	}
	raw, _, err := wire.ReadBEUint(buf, 5)
	if err != nil {
		return "", 0, err
	}
	raw -= 0x8000000000

	yearMonth := (raw >> 22) & 0x1FFFF
	day := (raw >> 17) & 0x1F
	hour := (raw >> 12) & 0x1F
	minute := (raw >> 6) & 0x3F
	second := raw & 0x3F
	year := yearMonth / 13
	month := yearMonth % 13

	fracMicros, fracLen, err := decodeFrac(buf[5:], fsp)
	if err != nil {
		return "", 0, err
	}

	s := fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second)
	if fsp > 0 {
		s += fmt.Sprintf(".%0*d", fsp, fracMicros/pow10(6-fsp))
	}
	return s, 5 + fracLen, nil
}

// DecodeTimestamp2 decodes a TIMESTAMP2 value: 4-byte big-endian epoch
// seconds plus fsp-dependent fractional-second bytes.
func DecodeTimestamp2(buf []byte, fsp int) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, fmt.Errorf("binlog: truncated timestamp2")
	}
	secs, _, err := wire.ReadBEUint(buf, 4)
	if err != nil {
		return "", 0, err
	}
	fracMicros, fracLen, err := decodeFrac(buf[4:], fsp)
	if err != nil {
		return "", 0, err
	}

	t := secondsToUTC(int64(secs))
	s := t
	if fsp > 0 {
		s += fmt.Sprintf(".%0*d", fsp, fracMicros/pow10(6-fsp))
	}
	return s, 4 + fracLen, nil
}

// DecodeYear decodes a 1-byte YEAR value, offset from 1900.
func DecodeYear(buf []byte) (int, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("binlog: truncated year")
	}
	return int(buf[0]) + 1900, 1, nil
}

// decodeFrac reads ceil(fsp/2) big-endian bytes and scales them to
// microseconds: odd fsp divides the raw value by 10 before scaling.
func decodeFrac(buf []byte, fsp int) (int64, int, error) {
	if fsp == 0 {
		return 0, 0, nil
	}
	n := (fsp + 1) / 2
	if len(buf) < n {
		return 0, 0, fmt.Errorf("binlog: truncated fractional seconds")
	}
	raw, err := readBEN(buf[:n])
	if err != nil {
		return 0, 0, err
	}
	if fsp%2 == 1 {
		raw /= 10
	}
	return raw * pow10(6-fsp), n, nil
}

func readBEN(b []byte) (int64, error) {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v, nil
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// secondsToUTC formats a Unix epoch-seconds value as a MySQL DATETIME
// string, without pulling in a time.Location dependency: the binlog
// stream's TIMESTAMP2 values are already UTC-normalized by the server
// before they reach the wire.
func secondsToUTC(epoch int64) string {
	const (
		secsPerDay  = 86400
		secsPerHour = 3600
		secsPerMin  = 60
	)
	days := epoch / secsPerDay
	rem := epoch % secsPerDay
	if rem < 0 {
		rem += secsPerDay
		days--
	}
	hour := rem / secsPerHour
	minute := (rem % secsPerHour) / secsPerMin
	second := rem % secsPerMin

	year, month, day := civilFromDays(days)
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second)
}

// civilFromDays converts a day count since the Unix epoch (1970-01-01)
// into a (year, month, day) civil date, using Howard Hinnant's
// days_from_civil algorithm in reverse.
func civilFromDays(z int64) (year, month, day int) {
	z += 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}
