package pipeline

import (
	"encoding/base64"
	"math"
)

var positiveInfinity = math.Inf(1)

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
