// sign prints the address and personal-message signature for a mnemonic, offline.
//
//	go run ./script/sign -mnemonic "word1 ... word12" -message "Transfer ..."
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

func main() {
	mnemonic := flag.String("mnemonic", os.Getenv("WALLET_MNEMONIC"), "12-word mnemonic (defaults to $WALLET_MNEMONIC)")
	message := flag.String("message", "", "message to sign; read from stdin when empty")
	scheme := flag.String("scheme", string(domain.SchemeSeedPrefix), "key derivation: seed_prefix or bip44")
	path := flag.String("path", utils.ETH_DEFAULT_PATH, "derivation path for bip44")
	flag.Parse()

	if *message == "" {
		in, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && in == "" {
			log.Fatal("read message:", err)
		}
		*message = strings.TrimRight(in, "\r\n")
	}

	keys, err := domain.NewKeyManager(domain.DerivationScheme(*scheme), *path)
	if err != nil {
		log.Fatal(err)
	}
	wallet, err := keys.DeriveWallet(*mnemonic)
	if err != nil {
		log.Fatal(err)
	}
	sig, err := keys.Sign(wallet.PrivateKey, *message)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("address:  ", wallet.Address)
	fmt.Println("signature:", domain.EncodeHex(sig))
}
