// Package slug は記事タイトルからURL用のslugを生成する。
package slug

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

const suffixLength = 6

// suffixSpace は36^6。サフィックスはこの範囲から一様に選ぶ。
var suffixSpace = big.NewInt(2176782336)

// Slugify はタイトルを小文字・ハイフン区切りに変換し、6文字の36進サフィックスを付ける。
// 例: "A New Day" -> "a-new-day-0k3x9z"
func Slugify(title string) string {
	base := slug.Make(title)
	suffix := randomSuffix()
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func randomSuffix() string {
	n, err := rand.Int(rand.Reader, suffixSpace)
	if err != nil {
		panic(err)
	}
	s := strconv.FormatInt(n.Int64(), 36)
	if len(s) < suffixLength {
		s = strings.Repeat("0", suffixLength-len(s)) + s
	}
	return s
}
