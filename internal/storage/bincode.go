package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
)

// maxPrealloc caps the capacity reserved up front for a decoded sequence, so
// a corrupt length fails on EOF instead of allocating.
const maxPrealloc = 1 << 16

// Bincode is a compact little-endian layout: integers and floats at their
// natural width, sequences and strings prefixed by a u64 length, pointers
// as a u8 presence tag followed by the value, struct fields in declaration
// order. Unexported and blank fields are skipped.
type Bincode struct{}

func (Bincode) Name() string { return "Bincode" }
func (Bincode) Ext() string  { return "bincode" }

func (Bincode) Encode(w io.Writer, v any) error {
	buf, err := appendValue(nil, reflect.ValueOf(v))
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func (Bincode) Decode(r io.Reader, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrUnsupported, v)
	}
	d := &bindec{r: r}
	return d.value(rv.Elem())
}

func appendValue(b []byte, v reflect.Value) ([]byte, error) {
	le := binary.LittleEndian
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case reflect.Int8:
		return append(b, byte(v.Int())), nil
	case reflect.Int16:
		return le.AppendUint16(b, uint16(v.Int())), nil
	case reflect.Int32:
		return le.AppendUint32(b, uint32(v.Int())), nil
	case reflect.Int, reflect.Int64:
		return le.AppendUint64(b, uint64(v.Int())), nil
	case reflect.Uint8:
		return append(b, byte(v.Uint())), nil
	case reflect.Uint16:
		return le.AppendUint16(b, uint16(v.Uint())), nil
	case reflect.Uint32:
		return le.AppendUint32(b, uint32(v.Uint())), nil
	case reflect.Uint, reflect.Uint64:
		return le.AppendUint64(b, v.Uint()), nil
	case reflect.Float32:
		return le.AppendUint32(b, math.Float32bits(float32(v.Float()))), nil
	case reflect.Float64:
		return le.AppendUint64(b, math.Float64bits(v.Float())), nil
	case reflect.String:
		b = le.AppendUint64(b, uint64(v.Len()))
		return append(b, v.String()...), nil
	case reflect.Slice:
		b = le.AppendUint64(b, uint64(v.Len()))
		return appendElems(b, v)
	case reflect.Array:
		return appendElems(b, v)
	case reflect.Pointer:
		if v.IsNil() {
			return append(b, 0), nil
		}
		return appendValue(append(b, 1), v.Elem())
	case reflect.Struct:
		t := v.Type()
		var err error
		for i := 0; i < v.NumField(); i++ {
			if f := t.Field(i); !f.IsExported() || f.Name == "_" {
				continue
			}
			if b, err = appendValue(b, v.Field(i)); err != nil {
				return nil, err
			}
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, v.Type())
}

func appendElems(b []byte, v reflect.Value) ([]byte, error) {
	var err error
	for i := 0; i < v.Len(); i++ {
		if b, err = appendValue(b, v.Index(i)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type bindec struct {
	r       io.Reader
	scratch [8]byte
}

func (d *bindec) read(n int) ([]byte, error) {
	b := d.scratch[:n]
	if _, err := io.ReadFull(d.r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func (d *bindec) u64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *bindec) length() (int, error) {
	n, err := d.u64()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("bincode: implausible length %d", n)
	}
	return int(n), nil
}

func (d *bindec) value(v reflect.Value) error {
	le := binary.LittleEndian
	switch v.Kind() {
	case reflect.Bool:
		b, err := d.read(1)
		if err != nil {
			return err
		}
		if b[0] > 1 {
			return fmt.Errorf("bincode: invalid bool %d", b[0])
		}
		v.SetBool(b[0] == 1)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int, reflect.Int64:
		size := int(v.Type().Size())
		b, err := d.read(size)
		if err != nil {
			return err
		}
		switch size {
		case 1:
			v.SetInt(int64(int8(b[0])))
		case 2:
			v.SetInt(int64(int16(le.Uint16(b))))
		case 4:
			v.SetInt(int64(int32(le.Uint32(b))))
		default:
			v.SetInt(int64(le.Uint64(b)))
		}
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint, reflect.Uint64:
		size := int(v.Type().Size())
		b, err := d.read(size)
		if err != nil {
			return err
		}
		switch size {
		case 1:
			v.SetUint(uint64(b[0]))
		case 2:
			v.SetUint(uint64(le.Uint16(b)))
		case 4:
			v.SetUint(uint64(le.Uint32(b)))
		default:
			v.SetUint(le.Uint64(b))
		}
	case reflect.Float32:
		b, err := d.read(4)
		if err != nil {
			return err
		}
		v.SetFloat(float64(math.Float32frombits(le.Uint32(b))))
	case reflect.Float64:
		b, err := d.read(8)
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(le.Uint64(b)))
	case reflect.String:
		n, err := d.length()
		if err != nil {
			return err
		}
		s := make([]byte, 0, min(n, maxPrealloc))
		chunk := make([]byte, min(n, maxPrealloc))
		for len(s) < n {
			m := min(n-len(s), len(chunk))
			if _, err := io.ReadFull(d.r, chunk[:m]); err != nil {
				return io.ErrUnexpectedEOF
			}
			s = append(s, chunk[:m]...)
		}
		v.SetString(string(s))
	case reflect.Slice:
		n, err := d.length()
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(v.Type(), 0, min(n, maxPrealloc))
		elem := reflect.New(v.Type().Elem()).Elem()
		for i := 0; i < n; i++ {
			elem.SetZero()
			if err := d.value(elem); err != nil {
				return err
			}
			s = reflect.Append(s, elem)
		}
		v.Set(s)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := d.value(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Pointer:
		b, err := d.read(1)
		if err != nil {
			return err
		}
		switch b[0] {
		case 0:
			v.SetZero()
		case 1:
			p := reflect.New(v.Type().Elem())
			if err := d.value(p.Elem()); err != nil {
				return err
			}
			v.Set(p)
		default:
			return fmt.Errorf("bincode: invalid option tag %d", b[0])
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if f := t.Field(i); !f.IsExported() || f.Name == "_" {
				continue
			}
			if err := d.value(v.Field(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, v.Type())
	}
	return nil
}
