package narrative

import "strings"

type advisory struct {
    name        string
    description string
    mitigation  string
    // version prefix (lowercase) -> CVE
    cves map[string]string
}

// knowledgeBase is keyed by nmap service name.
var knowledgeBase = map[string]advisory{
    "ftp": {
        name:        "Plaintext FTP service",
        description: "FTP transmits credentials and data unencrypted and is a frequent target for brute force and anonymous access abuse.",
        mitigation:  "Replace FTP with SFTP or FTPS and disable anonymous logins.",
        cves:        map[string]string{"vsftpd 2.3.4": "CVE-2011-2523"},
    },
    "ssh": {
        name:        "Internet-facing SSH",
        description: "SSH is reachable from the internet; outdated daemons carry known pre-authentication flaws.",
        mitigation:  "Restrict SSH to a VPN or bastion, enforce key-based authentication and keep OpenSSH patched.",
        cves:        map[string]string{"openssh 4.3": "CVE-2006-5051", "openssh 7.4": "CVE-2018-15473"},
    },
    "telnet": {
        name:        "Telnet remote administration",
        description: "Telnet offers unauthenticated-by-design cleartext remote shells and is routinely compromised by botnets.",
        mitigation:  "Disable telnet and migrate administration to SSH.",
    },
    "smtp": {
        name:        "Exposed mail transfer agent",
        description: "The SMTP service may allow relaying or user enumeration via VRFY/EXPN.",
        mitigation:  "Disable open relaying and the VRFY/EXPN commands; require STARTTLS.",
    },
    "domain": {
        name:        "Public DNS resolver",
        description: "An exposed resolver can be abused for amplification attacks or cache poisoning.",
        mitigation:  "Disable recursion for external clients and apply rate limiting.",
    },
    "http": {
        name:        "Unencrypted web service",
        description: "HTTP traffic is not encrypted and can be intercepted or modified in transit.",
        mitigation:  "Redirect all HTTP traffic to HTTPS and enable HSTS.",
    },
    "http-proxy": {
        name:        "Alternate HTTP management port",
        description: "Application servers on alternate ports often expose management consoles with default credentials.",
        mitigation:  "Remove management consoles from public interfaces and rotate default credentials.",
        cves:        map[string]string{"apache tomcat 8.5": "CVE-2020-1938"},
    },
    "pop3": {
        name:        "Legacy mail retrieval protocol",
        description: "POP3 without TLS exposes mailbox credentials.",
        mitigation:  "Require POP3S/IMAPS and disable plaintext authentication.",
    },
    "imap": {
        name:        "IMAP without enforced TLS",
        description: "IMAP may accept plaintext authentication.",
        mitigation:  "Require IMAPS and disable plaintext authentication.",
    },
    "microsoft-ds": {
        name:        "SMB file sharing exposed",
        description: "SMB exposed to the internet enables credential relay and wormable remote code execution.",
        mitigation:  "Block TCP 445 at the perimeter and disable SMBv1.",
        cves:        map[string]string{"samba smbd 3": "CVE-2017-7494"},
    },
    "mysql": {
        name:        "Database reachable from the internet",
        description: "MySQL is directly reachable, exposing it to credential stuffing and unpatched server flaws.",
        mitigation:  "Bind the database to private interfaces and allow access only from application hosts.",
        cves:        map[string]string{"mysql 5.5": "CVE-2016-6662"},
    },
    "postgresql": {
        name:        "Database reachable from the internet",
        description: "PostgreSQL is directly reachable, exposing it to brute force and unpatched server flaws.",
        mitigation:  "Bind the database to private interfaces and restrict pg_hba.conf to application hosts.",
    },
    "ms-wbt-server": {
        name:        "Remote Desktop exposed",
        description: "RDP exposed to the internet is a leading ransomware entry point.",
        mitigation:  "Put RDP behind a VPN or gateway with MFA and enable Network Level Authentication.",
    },
    "redis": {
        name:        "Unauthenticated Redis instance",
        description: "Redis without authentication allows arbitrary data access and, via module loading, remote code execution.",
        mitigation:  "Enable requirepass/ACLs, bind Redis to localhost and enable protected mode.",
        cves:        map[string]string{"redis 4.0": "CVE-2018-11218"},
    },
    "elasticsearch": {
        name:        "Open Elasticsearch cluster",
        description: "The search cluster API is reachable and may leak indexed data.",
        mitigation:  "Enable security features (TLS and authentication) and restrict the HTTP API to internal networks.",
    },
}

func lookupAdvisory(service string) (advisory, bool) {
    a, ok := knowledgeBase[strings.ToLower(service)]
    return a, ok
}

func (a advisory) cveFor(version *string) *string {
    if version == nil {
        return nil
    }
    v := strings.ToLower(*version)
    for prefix, cve := range a.cves {
        if strings.HasPrefix(v, prefix) {
            id := cve
            return &id
        }
    }
    return nil
}
