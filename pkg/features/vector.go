package features

// Vector はモデルに渡す固定長の特徴ベクトルです。
type Vector []int

// Assemble は order の並びで set の値を取り出します。set にない特徴量は 0 になります。
// 結果の長さは常に len(order) です。
func Assemble(order []string, set Set) Vector {
	v := make(Vector, len(order))
	for i, name := range order {
		v[i] = set[name]
	}
	return v
}

// Vector は CanonicalOrder で組み立てたベクトルを返します。
func (s Set) Vector() Vector {
	return Assemble(CanonicalOrder, s)
}

// Float64s は回帰モデル向けに float64 のスライスへ変換します。
func (v Vector) Float64s() []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
