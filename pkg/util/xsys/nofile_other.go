//go:build !unix

package xsys

// EnsureFileLimit 在非 Unix 平台上返回 [ErrUnsupportedPlatform]
func EnsureFileLimit(minLimit uint64) error {
	if minLimit == 0 {
		return ErrInvalidFileLimit
	}
	return ErrUnsupportedPlatform
}

// FileLimit 在非 Unix 平台上返回 [ErrUnsupportedPlatform]
func FileLimit() (soft, hard uint64, err error) {
	return 0, 0, ErrUnsupportedPlatform
}
