package commands

import (
	"fmt"
	"os"
	"path"

	"github.com/lholznagel/carina/src/crypto"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	pubKeyFile            string
	defaultPrivateKeyFile = fmt.Sprintf("%s/priv_key", _config.Carina.DataDir)
	defaultPublicKeyFile  = fmt.Sprintf("%s/key.pub", _config.Carina.DataDir)
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the secret key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", defaultPublicKeyFile, "File where the public key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", path.Dir(privKeyFile))
	}

	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("Error generating key pair: %s", err)
	}

	if err := crypto.NewSimpleKeyfile(privKeyFile).WriteKey(key); err != nil {
		return fmt.Errorf("Writing secret key: %s", err)
	}

	fmt.Printf("Your secret key has been saved to: %s\n", privKeyFile)

	if err := os.MkdirAll(path.Dir(pubKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	if err := os.WriteFile(pubKeyFile, []byte(key.PublicBase64()), 0644); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)

	return nil
}
