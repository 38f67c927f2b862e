//go:build !windows

package spreadsheet

// NewExcelApp is only available on Windows.
func NewExcelApp() (Application, error) {
	return nil, ErrUnsupportedPlatform
}
