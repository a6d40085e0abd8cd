package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authkit/internal/app"
	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/builtin"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/security/tokencipher"
	"github.com/dropDatabas3/authkit/internal/util/atomicwrite"
)

type rootOptions struct {
	envFile    string
	configPath string
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.envFile != "" {
		_ = godotenv.Load(o.envFile)
	}
	return config.Load(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "authkit",
		Short:         "Herramientas de operación para authkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "ruta a .env (opcional)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("AUTH_KIT_CONFIG"), "ruta a config.yaml (env AUTH_KIT_CONFIG)")

	root.AddCommand(newKeysCmd(), newTokenCmd(), newMigrateCmd(opts), newProvidersCmd(opts))
	return root
}

func newKeysCmd() *cobra.Command {
	var outPath string
	var force bool
	keys := &cobra.Command{Use: "keys", Short: "Claves de cifrado"}
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave AES-256 para AUTH_KIT_OAUTH_TOKEN_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := make([]byte, 32)
			if _, err := rand.Read(k); err != nil {
				return err
			}
			encoded := base64.StdEncoding.EncodeToString(k)
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return nil
			}
			if err := atomicwrite.WriteSecret(outPath, []byte(encoded+"\n"), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key written to %s\n", outPath)
			return nil
		},
	}
	gen.Flags().StringVarP(&outPath, "out", "o", "", "escribe la clave en un archivo (0600) en vez de stdout")
	gen.Flags().BoolVar(&force, "force", false, "sobrescribe --out si existe")
	keys.AddCommand(gen)
	return keys
}

func newTokenCmd() *cobra.Command {
	var key string
	token := &cobra.Command{Use: "token", Short: "Cifra o descifra tokens de provider almacenados"}
	token.PersistentFlags().StringVar(&key, "key", "", "clave base64 (default: env AUTH_KIT_OAUTH_TOKEN_ENCRYPTION_KEY)")

	cipherFor := func() (*tokencipher.Cipher, error) {
		k := key
		if k == "" {
			k = os.Getenv(config.EnvPrefix + "OAUTH_TOKEN_ENCRYPTION_KEY")
		}
		raw, err := config.DecodeKey(k)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("--key es requerido")
		}
		return tokencipher.New(raw)
	}

	encrypt := &cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Sella un valor en formato v1:",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFor()
			if err != nil {
				return err
			}
			out, err := c.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	decrypt := &cobra.Command{
		Use:   "decrypt <envelope>",
		Short: "Abre un valor sellado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFor()
			if err != nil {
				return err
			}
			out, err := c.Decrypt(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	token.AddCommand(encrypt, decrypt)
	return token
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrate := &cobra.Command{Use: "migrate", Short: "Migraciones de esquema"}
	up := &cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes del driver configurado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := app.OpenStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := st.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "driver=%s applied=%v skipped=%d took=%s\n",
				cfg.Storage.Driver, res.Applied, len(res.Skipped), res.Duration)
			return nil
		},
	}
	migrate.AddCommand(up)
	return migrate
}

func newProvidersCmd(opts *rootOptions) *cobra.Command {
	var tenant string
	var asJSON bool
	prov := &cobra.Command{Use: "providers", Short: "Providers de login social"}
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista los providers y si están habilitados para un tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			reg := builtin.NewRegistry(cfg.OAuth, providers.Options{})
			tenants := []string{tenant}
			if tenant == "" {
				tenants = app.Tenants(cfg.OAuth)
			}
			out := map[string][]providers.Info{}
			for _, t := range tenants {
				out[t] = reg.Info(context.Background(), t)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, t := range tenants {
				for _, in := range out[t] {
					fmt.Fprintf(w, "%s\t%s\t%t\n", t, in.Name, in.Enabled)
				}
			}
			return nil
		},
	}
	list.Flags().StringVar(&tenant, "tenant", "", "slug del tenant (default: todos)")
	list.Flags().BoolVar(&asJSON, "json", false, "salida JSON")
	prov.AddCommand(list)
	return prov
}
