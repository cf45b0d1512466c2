package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain number",
			in:   "Toshkentdan Samarqandga, tel 998901234567",
			want: "Toshkentdan Samarqandga, tel 99*****67",
		},
		{
			name: "seven digits exactly",
			in:   "raqam 1234567",
			want: "raqam 12*****67",
		},
		{
			name: "six digits untouched",
			in:   "uy 123456",
			want: "uy 123456",
		},
		{
			name: "spaces between digits",
			in:   "tel: 90 123 45 67",
			want: "tel: 90*****67",
		},
		{
			name: "hyphens between digits",
			in:   "tel: 90-123-45-67",
			want: "tel: 90*****67",
		},
		{
			name: "two numbers in one text",
			in:   "90 123 45 67 yoki 91 765 43 21",
			want: "90*****67 yoki 91*****21",
		},
		{
			name: "short runs survive around a number",
			in:   "3 kishi, 50 000 so'm, tel 998712345678",
			want: "3 kishi, 50 000 so'm, tel 99*****78",
		},
		{
			name: "no digits",
			in:   "shahar markazidan aeroportga",
			want: "shahar markazidan aeroportga",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhoneNumbers(tt.in))
		})
	}
}

func TestMaskPhoneNumbersIdempotent(t *testing.T) {
	inputs := []string{
		"raqam 1234567",                    // 7 digits
		"tel 9012345678",                   // 10 digits
		"xalqaro 9989012345678",            // 13 digits
		"Chilonzordan Yunusobodga, 90 123 45 67, 2 kishi",
	}

	for _, in := range inputs {
		once := MaskPhoneNumbers(in)
		assert.Equal(t, once, MaskPhoneNumbers(once), "input: %s", in)
	}
}
