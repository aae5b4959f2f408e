package model

import "sort"

// IDSet は識別子の集合。重複は1件にまとめられ、順序は保証しない。
// nilのIDSetは空集合として読み取れるが、Addする前にNewIDSetで初期化すること。
type IDSet map[string]struct{}

// NewIDSet は指定IDを要素とする集合を生成する。
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add は要素を追加する。既に含まれていた場合はfalseを返す。
func (s IDSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove は要素を削除する。含まれていなかった場合はfalseを返す。
func (s IDSet) Remove(id string) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Contains は要素が含まれるかを返す。
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len は要素数を返す。
func (s IDSet) Len() int {
	return len(s)
}

// Slice は要素をソート済みのスライスで返す。
// 集合に順序はないが、SQLパラメータやテストで安定した並びが必要なためソートする。
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone は集合の複製を返す。
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}
