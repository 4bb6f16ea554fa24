package config

import (
	"fmt"
	"os"

	"github.com/rowjay/content-restore/internal/cryptoutil"
)

// EncryptConfigFile seals a config file with key. The output must carry an .enc suffix
// so Load knows to decrypt it, and is never allowed to replace the input.
func EncryptConfigFile(inputPath, outputPath, key string) error {
	if !isEncryptedPath(outputPath) {
		return fmt.Errorf("output %s must end in .enc", outputPath)
	}
	if inputPath == outputPath {
		return fmt.Errorf("refusing to overwrite %s", inputPath)
	}
	plain, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return err
	}
	sealed, err := cryptoutil.EncryptConfig(plain, parsed)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, sealed, 0o600)
}
