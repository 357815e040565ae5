package helpers

// CopyOf returns a shallow copy of a slice. A nil slice stays nil.
func CopyOf[V any](slice []V) []V {
	if slice == nil {
		return nil
	}
	return append(make([]V, 0, len(slice)), slice...)
}

// IfElse returns valueIfTrue or valueIfFalse depending on isTrue.
func IfElse[V any](isTrue bool, valueIfTrue, valueIfFalse V) V {
	if isTrue {
		return valueIfTrue
	}
	return valueIfFalse
}
